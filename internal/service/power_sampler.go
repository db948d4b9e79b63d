package service

import (
	"sync"
	"time"
)

const defaultSamplerWindow = 10 * time.Minute

type powerSample struct {
	at time.Time
	kw float64
}

// PowerSampler keeps a sliding time window of recent power samples per meter.
// The window only feeds the estimator's projection; losing it on restart
// costs estimator accuracy for at most one window, never settlement
// correctness.
type PowerSampler struct {
	mu      sync.Mutex
	window  time.Duration
	samples map[string][]powerSample
	now     func() time.Time
}

// NewPowerSampler builds a sampler; window <= 0 falls back to 10 minutes.
func NewPowerSampler(window time.Duration) *PowerSampler {
	if window <= 0 {
		window = defaultSamplerWindow
	}
	return &PowerSampler{
		window:  window,
		samples: make(map[string][]powerSample),
		now:     time.Now,
	}
}

// Record appends a timestamped sample and evicts samples older than the window.
func (p *PowerSampler) Record(meterID string, powerKw float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	kept := p.evictLocked(meterID, now)
	p.samples[meterID] = append(kept, powerSample{at: now, kw: powerKw})
}

// Average returns the arithmetic mean of retained samples, 0 when empty.
func (p *PowerSampler) Average(meterID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.evictLocked(meterID, p.now())
	p.samples[meterID] = kept
	if len(kept) == 0 {
		return 0
	}
	var sum float64
	for _, s := range kept {
		sum += s.kw
	}
	return sum / float64(len(kept))
}

// Clear drops all samples for the meter; called after a successful settlement.
func (p *PowerSampler) Clear(meterID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.samples, meterID)
}

func (p *PowerSampler) evictLocked(meterID string, now time.Time) []powerSample {
	cutoff := now.Add(-p.window)
	existing := p.samples[meterID]
	kept := existing[:0]
	for _, s := range existing {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
}
