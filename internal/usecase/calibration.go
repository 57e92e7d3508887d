package usecase

import (
	"fmt"
	"log/slog"
	"sort"

	obsadapter "github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
)

// Reloader swaps the engine's calibration.
type Reloader interface {
	Calibration() *scoring.Calibration
	Reload(cal *scoring.Calibration) error
}

// CalibrationInfo summarizes the active calibration.
type CalibrationInfo struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Items   int      `json:"items"`
	Tiers   []string `json:"tiers"`
	Method  string   `json:"estimator"`
}

// CalibrationService exposes the active calibration and replaces it at runtime.
// Overrides from process configuration are applied to every replacement.
type CalibrationService struct {
	Engine    Reloader
	Overrides scoring.Overrides
}

// NewCalibrationService constructs a CalibrationService.
func NewCalibrationService(e Reloader, o scoring.Overrides) CalibrationService {
	return CalibrationService{Engine: e, Overrides: o}
}

// Current describes the calibration in use.
func (s CalibrationService) Current() CalibrationInfo {
	return describe(s.Engine.Calibration())
}

// Export returns the active calibration as YAML.
func (s CalibrationService) Export() ([]byte, error) {
	return s.Engine.Calibration().Marshal()
}

// Replace parses raw YAML, validates it and swaps it in. On any error the
// active calibration is unchanged.
func (s CalibrationService) Replace(ctx domain.Context, raw []byte) (CalibrationInfo, error) {
	lg := observability.LoggerFromContext(ctx)
	cal, err := scoring.ParseCalibration(raw)
	if err == nil {
		err = s.Engine.Reload(s.Overrides.Apply(cal))
	}
	if err != nil {
		obsadapter.RecordCalibrationReload(false)
		lg.Warn("calibration rejected", slog.Any("error", err))
		return CalibrationInfo{}, fmt.Errorf("op=calibration.Replace: %w", err)
	}
	obsadapter.RecordCalibrationReload(true)
	info := s.Current()
	lg.Info("calibration replaced", slog.String("name", info.Name), slog.String("version", info.Version))
	return info, nil
}

func describe(cal *scoring.Calibration) CalibrationInfo {
	tiers := make([]string, 0, len(cal.Tiers))
	for name := range cal.Tiers {
		tiers = append(tiers, name)
	}
	sort.Strings(tiers)
	return CalibrationInfo{
		Name:    cal.Name,
		Version: cal.Version(),
		Items:   len(cal.Items),
		Tiers:   tiers,
		Method:  cal.Estimator.Method,
	}
}
