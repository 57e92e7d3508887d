package scoring

import (
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// EstimateJungian derives shadow integration, archetype affinities and the
// individuation stage from tertiary-layer Likert evidence. It reports false
// when no shadow-weighted responses were available and the neutral 0.5 was
// used instead.
func EstimateJungian(cal *Calibration, set *NormalizedSet) (domain.JungianResult, bool) {
	var shadowSum, shadowWeight float64
	archSum := make(map[string]float64)
	archWeight := make(map[string]float64)
	for _, ev := range set.Evidence {
		it := ev.Item
		if it.Layer != domain.LayerTertiary || !it.ResponseType.IsLikert() {
			continue
		}
		if it.ShadowWeight > 0 {
			shadowSum += it.ShadowWeight * ev.Normalized
			shadowWeight += it.ShadowWeight
		}
		for name, w := range it.ArchetypeWeights {
			if w <= 0 {
				continue
			}
			archSum[name] += w * ev.Normalized
			archWeight[name] += w
		}
	}

	res := domain.JungianResult{ShadowIntegration: 0.5}
	sampled := shadowWeight > 0
	if sampled {
		res.ShadowIntegration = clamp((1+shadowSum/shadowWeight)/2, 0, 1)
	}
	if len(archWeight) > 0 {
		res.ArchetypeProfile = make(map[string]float64, len(archWeight))
		for _, name := range cal.Archetypes {
			if w := archWeight[name]; w > 0 {
				res.ArchetypeProfile[name] = clamp((1+archSum[name]/w)/2, 0, 1)
			}
		}
	}
	res.IndividuationStage = IndividuationStage(cal.Individuation, res.ShadowIntegration)
	return res, sampled
}

// IndividuationStage bands a shadow integration score. A score equal to a
// threshold falls into the higher band.
func IndividuationStage(s IndividuationSettings, integration float64) string {
	if len(s.Labels) == 0 {
		return ""
	}
	band := 0
	for _, th := range s.Thresholds {
		if integration >= th {
			band++
		}
	}
	return s.Labels[band]
}
