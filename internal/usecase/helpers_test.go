package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
)

func newEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(scoring.ReferenceCalibration())
	require.NoError(t, err)
	return e
}

// midpointWire answers every core item at the scale midpoint.
func midpointWire(cal *scoring.Calibration) []domain.WireResponse {
	out := make([]domain.WireResponse, 0, len(cal.Items))
	for _, it := range cal.Items {
		v := (it.ResponseType.Categories() + 1) / 2
		if it.ResponseType == domain.ForcedChoice {
			v = 1
		}
		out = append(out, domain.WireResponse{QuestionID: it.ID, Value: v})
	}
	return out
}
