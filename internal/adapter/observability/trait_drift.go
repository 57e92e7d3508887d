package observability

import (
	"log/slog"
	"sync"
)

// TraitDriftMonitor keeps a rolling window of display scores per trait and
// warns when the window mean wanders away from the calibration's baseline.
// A persistent drift means the norms no longer match the tested population.
type TraitDriftMonitor struct {
	mu        sync.Mutex
	window    int
	threshold float64
	version   string
	baseline  map[string]float64
	recent    map[string][]float64
}

// NewTraitDriftMonitor returns a monitor with the given window size and
// threshold in display-score points.
func NewTraitDriftMonitor(window int, threshold float64) *TraitDriftMonitor {
	if window < 1 {
		window = 1
	}
	return &TraitDriftMonitor{
		window:    window,
		threshold: threshold,
		baseline:  map[string]float64{},
		recent:    map[string][]float64{},
	}
}

// Record adds one result's trait scores. A new calibration version resets
// the windows; traits without a baseline use the scale midpoint 50.
func (m *TraitDriftMonitor) Record(version string, scores map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version != m.version {
		m.version = version
		m.recent = map[string][]float64{}
	}
	for trait, s := range scores {
		w := append(m.recent[trait], s)
		if len(w) > m.window {
			w = w[len(w)-m.window:]
		}
		m.recent[trait] = w
		if len(w) < m.window {
			continue
		}
		drift := m.driftLocked(trait)
		TraitDriftGauge.WithLabelValues(trait, version).Set(drift)
		if drift > m.threshold {
			slog.Warn("trait score drift detected",
				slog.String("trait", trait),
				slog.Float64("drift", drift),
				slog.Float64("threshold", m.threshold),
				slog.String("calibration_version", version))
		}
	}
}

// SetBaseline overrides the expected mean display score of a trait.
func (m *TraitDriftMonitor) SetBaseline(trait string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline[trait] = score
}

// Drift returns the current absolute drift for trait, or 0 before the
// window has filled.
func (m *TraitDriftMonitor) Drift(trait string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recent[trait]) < m.window {
		return 0
	}
	return m.driftLocked(trait)
}

func (m *TraitDriftMonitor) driftLocked(trait string) float64 {
	base, ok := m.baseline[trait]
	if !ok {
		base = 50
	}
	w := m.recent[trait]
	sum := 0.0
	for _, s := range w {
		sum += s
	}
	d := sum/float64(len(w)) - base
	if d < 0 {
		d = -d
	}
	return d
}
