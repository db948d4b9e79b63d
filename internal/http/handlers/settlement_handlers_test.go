package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"gridtoken/internal/http/middleware"
	"gridtoken/internal/models"
	"gridtoken/internal/service"
)

const testSecret = "test-secret"

type fakeEngine struct {
	hash       string
	settleErr  error
	confirmErr error

	gotMeterID   string
	gotAccountID int64
}

func (f *fakeEngine) TriggerManualSettlement(_ context.Context, meterID string, accountID int64) (string, error) {
	f.gotMeterID = meterID
	f.gotAccountID = accountID
	if f.settleErr != nil {
		return "", f.settleErr
	}
	return f.hash, nil
}

func (f *fakeEngine) SettlementHistory(context.Context, models.SettlementFilter) ([]models.SettlementRecord, error) {
	return nil, nil
}

func (f *fakeEngine) ConfirmSettlement(context.Context, int64, string, bool, *float64) error {
	return f.confirmErr
}

func bearerToken(t *testing.T, accountID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"account_id": accountID})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doSettle(t *testing.T, engine *fakeEngine, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	handler := middleware.AuthMiddleware(testSecret)(NewManualSettleHandler(engine, zap.NewNop()))
	req := httptest.NewRequest(http.MethodPost, "/settlements/settle", strings.NewReader(`{"meter_id":"meter-1"}`))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestManualSettleOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		settleErr  error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"unknown meter", service.ErrUnknownMeter, http.StatusNotFound},
		{"not owner", service.ErrNotOwner, http.StatusForbidden},
		{"in progress", service.ErrSettlementInProgress, http.StatusConflict},
		{"not eligible", service.ErrNotEligible, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		engine := &fakeEngine{hash: "0xabc", settleErr: tc.settleErr}
		rec := doSettle(t, engine, bearerToken(t, 42))
		if rec.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.wantStatus)
		}
	}
}

func TestManualSettlePassesAccountFromToken(t *testing.T) {
	engine := &fakeEngine{hash: "0xabc"}
	rec := doSettle(t, engine, bearerToken(t, 42))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if engine.gotMeterID != "meter-1" || engine.gotAccountID != 42 {
		t.Errorf("engine called with %s/%d", engine.gotMeterID, engine.gotAccountID)
	}
	if !strings.Contains(rec.Body.String(), "0xabc") {
		t.Errorf("response missing tx hash: %s", rec.Body.String())
	}
}

func TestManualSettleRejectsMissingToken(t *testing.T) {
	engine := &fakeEngine{hash: "0xabc"}
	rec := doSettle(t, engine, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
