package dispatch

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// ThresholdTuner observes the winning scores of committed assignments. It
// informs operators about where the confidence floor sits relative to real
// matches; it never changes the configured threshold on its own.
type ThresholdTuner interface {
	Observe(score float64)
}

// Suggester is implemented by tuners able to propose a confidence floor from
// what they have observed.
type Suggester interface {
	Suggest() (float64, bool)
}

// NoopTuner ignores every observation.
type NoopTuner struct{}

func (NoopTuner) Observe(float64) {}

// QuantileTuner keeps a rolling window of winning scores and suggests the
// configured quantile as a candidate floor.
type QuantileTuner struct {
	mu       sync.Mutex
	scores   []float64
	window   int
	quantile float64
}

// NewQuantileTuner creates a tuner over the last window scores. A window of
// zero defaults to 100, a quantile outside (0,1) defaults to 0.1.
func NewQuantileTuner(window int, quantile float64) *QuantileTuner {
	if window <= 0 {
		window = 100
	}
	if quantile <= 0 || quantile >= 1 {
		quantile = 0.1
	}
	return &QuantileTuner{window: window, quantile: quantile}
}

// Observe records one winning score, evicting the oldest beyond the window.
func (t *QuantileTuner) Observe(score float64) {
	t.mu.Lock()
	t.scores = append(t.scores, score)
	if len(t.scores) > t.window {
		t.scores = t.scores[len(t.scores)-t.window:]
	}
	t.mu.Unlock()
}

// Suggest returns the configured quantile of the observed scores. The second
// return is false until at least ten observations exist.
func (t *QuantileTuner) Suggest() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.scores) < 10 {
		return 0, false
	}
	sorted := append([]float64(nil), t.scores...)
	sort.Float64s(sorted)
	return stat.Quantile(t.quantile, stat.Empirical, sorted, nil), true
}
