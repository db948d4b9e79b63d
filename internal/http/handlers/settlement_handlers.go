package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gridtoken/internal/http/middleware"
	"gridtoken/internal/models"
	"gridtoken/internal/service"
)

// SettlementAPI is the engine surface the handlers need.
type SettlementAPI interface {
	TriggerManualSettlement(ctx context.Context, meterID string, accountID int64) (string, error)
	SettlementHistory(ctx context.Context, filter models.SettlementFilter) ([]models.SettlementRecord, error)
	ConfirmSettlement(ctx context.Context, settlementID int64, txHash string, success bool, etkAmount *float64) error
}

// ManualSettleHandler handles POST /settlements/settle.
type ManualSettleHandler struct {
	engine SettlementAPI
	logger *zap.Logger
}

// NewManualSettleHandler builds handler.
func NewManualSettleHandler(engine SettlementAPI, logger *zap.Logger) *ManualSettleHandler {
	return &ManualSettleHandler{engine: engine, logger: logger}
}

type manualSettleRequest struct {
	MeterID string `json:"meter_id"`
}

// ServeHTTP triggers a manual settlement for an owned meter. The three
// non-success outcomes stay distinguishable for the caller.
func (h *ManualSettleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}

	var req manualSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.MeterID == "" {
		writeError(w, http.StatusBadRequest, "meter_id required")
		return
	}

	hash, err := h.engine.TriggerManualSettlement(r.Context(), req.MeterID, accountID)
	switch {
	case errors.Is(err, service.ErrUnknownMeter):
		writeError(w, http.StatusNotFound, "unknown meter")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "meter not owned by account")
	case errors.Is(err, service.ErrSettlementInProgress):
		writeError(w, http.StatusConflict, "settlement already in progress")
	case errors.Is(err, service.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, "settlement conditions not met")
	case err != nil:
		h.logger.Error("manual settlement failed",
			zap.String("meter_id", req.MeterID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "settlement failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash})
	}
}

// NewHistoryHandler returns GET /settlements handler.
func NewHistoryHandler(engine SettlementAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing account")
			return
		}

		filter := models.SettlementFilter{
			MeterID:   r.URL.Query().Get("meter_id"),
			AccountID: accountID,
		}
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = limit
		}

		records, err := engine.SettlementHistory(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load settlements")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": records})
	}
}

// ConfirmHandler handles POST /internal/settlements/confirm, the finality
// callback from the chain watcher.
type ConfirmHandler struct {
	engine SettlementAPI
	logger *zap.Logger
}

// NewConfirmHandler builds handler.
func NewConfirmHandler(engine SettlementAPI, logger *zap.Logger) *ConfirmHandler {
	return &ConfirmHandler{engine: engine, logger: logger}
}

type confirmRequest struct {
	SettlementID int64    `json:"settlement_id"`
	TxHash       string   `json:"tx_hash"`
	Success      bool     `json:"success"`
	EtkAmount    *float64 `json:"etk_amount,omitempty"`
}

func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SettlementID == 0 {
		writeError(w, http.StatusBadRequest, "settlement_id required")
		return
	}

	if err := h.engine.ConfirmSettlement(r.Context(), req.SettlementID, req.TxHash, req.Success, req.EtkAmount); err != nil {
		h.logger.Error("settlement confirmation failed",
			zap.Int64("settlement_id", req.SettlementID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "confirmation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
