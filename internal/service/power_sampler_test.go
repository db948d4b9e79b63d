package service

import (
	"math"
	"testing"
	"time"
)

func TestPowerSamplerAverage(t *testing.T) {
	sampler := NewPowerSampler(10 * time.Minute)

	if avg := sampler.Average("meter-1"); avg != 0 {
		t.Errorf("empty window average = %v, want 0", avg)
	}

	sampler.Record("meter-1", 1.0)
	sampler.Record("meter-1", 2.0)
	sampler.Record("meter-1", 3.0)

	if avg := sampler.Average("meter-1"); math.Abs(avg-2.0) > 1e-9 {
		t.Errorf("average = %v, want 2.0", avg)
	}

	// Other meters are independent.
	if avg := sampler.Average("meter-2"); avg != 0 {
		t.Errorf("unrelated meter average = %v, want 0", avg)
	}
}

func TestPowerSamplerEvictsOldSamples(t *testing.T) {
	sampler := NewPowerSampler(10 * time.Minute)
	base := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

	now := base
	sampler.now = func() time.Time { return now }

	sampler.Record("meter-1", 5.0)

	now = base.Add(9 * time.Minute)
	sampler.Record("meter-1", 1.0)

	// The 12:00 sample falls off once eleven minutes pass.
	now = base.Add(11 * time.Minute)
	if avg := sampler.Average("meter-1"); math.Abs(avg-1.0) > 1e-9 {
		t.Errorf("average after eviction = %v, want 1.0", avg)
	}
}

func TestPowerSamplerClear(t *testing.T) {
	sampler := NewPowerSampler(10 * time.Minute)
	sampler.Record("meter-1", 4.0)
	sampler.Record("meter-2", 6.0)

	sampler.Clear("meter-1")

	if avg := sampler.Average("meter-1"); avg != 0 {
		t.Errorf("cleared meter average = %v, want 0", avg)
	}
	if avg := sampler.Average("meter-2"); math.Abs(avg-6.0) > 1e-9 {
		t.Errorf("clear must not touch other meters: avg = %v", avg)
	}
}
