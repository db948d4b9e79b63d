package ingest

import (
	"math"
	"testing"
	"time"

	"gridtoken/internal/models"
)

func TestMapRealtime(t *testing.T) {
	ts := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	reading := models.MeterReading{
		MeterID:   "meter-1",
		Timestamp: ts,
		PowerKw:   -1.2,
		Export:    models.EnergyChannel{SettlementEnergyWh: 5000},
		Import:    models.EnergyChannel{SettlementEnergyWh: 1200},
	}

	rt := MapRealtime(reading)

	if rt.MeterID != "meter-1" || !rt.Timestamp.Equal(ts) {
		t.Errorf("identity fields = %+v", rt)
	}
	if rt.NetFlowKw != -1.2 {
		t.Errorf("net flow = %v, want -1.2", rt.NetFlowKw)
	}
	if math.Abs(rt.ExportKwh-5.0) > 1e-9 || math.Abs(rt.ImportKwh-1.2) > 1e-9 {
		t.Errorf("window energy = %v/%v kWh, want 5.0/1.2", rt.ExportKwh, rt.ImportKwh)
	}
}
