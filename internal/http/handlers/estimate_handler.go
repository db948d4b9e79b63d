package handlers

import (
	"context"
	"net/http"

	"gridtoken/internal/models"
)

// EstimateAPI is the estimator surface the handler needs.
type EstimateAPI interface {
	Estimate(ctx context.Context, meterID string) (*models.SettlementEstimate, error)
}

// NewEstimateHandler returns GET /settlements/estimate handler.
func NewEstimateHandler(estimator EstimateAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meterID := r.URL.Query().Get("meter_id")
		if meterID == "" {
			writeError(w, http.StatusBadRequest, "meter_id required")
			return
		}

		estimate, err := estimator.Estimate(r.Context(), meterID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute estimate")
			return
		}
		if estimate == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"estimate": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"estimate": estimate})
	}
}
