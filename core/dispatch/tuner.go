package dispatch

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// AcceptSample is one observed winning acceptance, used to adapt scoring
// policy to how fast contractors actually respond.
type AcceptSample struct {
	JobID        string
	ContractorID string
	Round        int
	Latency      time.Duration
}

// Tuner adjusts scoring parameters based on past dispatch results.
type Tuner interface {
	Tune(samples []AcceptSample)
}

// NopTuner leaves the scorer unchanged.
type NopTuner struct{}

// Tune implements Tuner.
func (NopTuner) Tune([]AcceptSample) {}

// ResponseTimeTuner moves the scorer's response-time bonus cutoffs toward the
// observed accept-latency distribution: the fast cutoff tracks the lower
// quartile, the moderate cutoff the upper quartile. Cutoffs never drop below
// the configured floors.
type ResponseTimeTuner struct {
	Scorer     *Scorer
	MinSamples int
	FloorFast  time.Duration
	FloorSlow  time.Duration

	mu sync.Mutex
}

// NewResponseTimeTuner returns a tuner bound to the given scorer. It returns
// nil if the scorer is nil.
func NewResponseTimeTuner(s *Scorer) *ResponseTimeTuner {
	if s == nil {
		return nil
	}
	return &ResponseTimeTuner{
		Scorer:     s,
		MinSamples: 20,
		FloorFast:  5 * time.Minute,
		FloorSlow:  15 * time.Minute,
	}
}

// Tune implements Tuner.
func (t *ResponseTimeTuner) Tune(samples []AcceptSample) {
	if t == nil || t.Scorer == nil || len(samples) < t.MinSamples {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	minutes := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Latency > 0 {
			minutes = append(minutes, s.Latency.Minutes())
		}
	}
	if len(minutes) < t.MinSamples {
		return
	}
	sort.Float64s(minutes)

	fast := time.Duration(stat.Quantile(0.25, stat.Empirical, minutes, nil) * float64(time.Minute))
	moderate := time.Duration(stat.Quantile(0.75, stat.Empirical, minutes, nil) * float64(time.Minute))
	if fast < t.FloorFast {
		fast = t.FloorFast
	}
	if moderate < t.FloorSlow {
		moderate = t.FloorSlow
	}
	if moderate <= fast {
		moderate = fast + time.Minute
	}
	t.Scorer.SetResponseCutoffs(fast, moderate)
}
