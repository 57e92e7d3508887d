package scoring

import (
	"fmt"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// TraitEstimate is the scored state of one Big Five dimension.
type TraitEstimate struct {
	Trait      domain.Trait
	Estimate   Estimate
	Score      float64
	Percentile float64
	Interval   domain.ConfidenceInterval
}

// TraitProfile is the trait estimator's output for one submission.
type TraitProfile struct {
	Traits map[domain.Trait]TraitEstimate
	// Facets is nil for traits whose facets are under-sampled.
	Facets   map[domain.Trait]map[string]float64
	Warnings []string
}

// Scores returns the display scores keyed by trait.
func (p TraitProfile) Scores() map[domain.Trait]float64 {
	out := make(map[domain.Trait]float64, len(p.Traits))
	for t, e := range p.Traits {
		out[t] = e.Score
	}
	return out
}

// PriorMean is the MAP prior location for a trait: the forced-choice nudges
// scaled by the configured weight and clamped to one logit.
func PriorMean(cal *Calibration, set *NormalizedSet, t domain.Trait) float64 {
	if cal.Estimator.Method == MethodMLE {
		return 0
	}
	return clamp(cal.Estimator.ForcedChoicePriorWeight*set.TraitNudges[t], -1, 1)
}

// EstimateTraits runs the Graded Response Model estimator for every Big
// Five dimension and, where each facet is sufficiently sampled, every facet.
func EstimateTraits(cal *Calibration, set *NormalizedSet) TraitProfile {
	byTrait := make(map[domain.Trait][]GradedItem, len(domain.Traits))
	byFacet := make(map[domain.Trait]map[string][]GradedItem, len(domain.Traits))
	for _, ev := range set.Evidence {
		it := ev.Item
		if it.Layer != domain.LayerPrimary || !it.ResponseType.IsLikert() {
			continue
		}
		gi := GradedItem{Discrimination: it.Discrimination, Thresholds: it.Thresholds, Category: ev.Category}
		byTrait[it.Dimension] = append(byTrait[it.Dimension], gi)
		if it.Facet != "" {
			if byFacet[it.Dimension] == nil {
				byFacet[it.Dimension] = make(map[string][]GradedItem)
			}
			byFacet[it.Dimension][it.Facet] = append(byFacet[it.Dimension][it.Facet], gi)
		}
	}

	est := cal.Estimator
	prof := TraitProfile{Traits: make(map[domain.Trait]TraitEstimate, len(domain.Traits))}
	for _, t := range domain.Traits {
		mean := PriorMean(cal, set, t)
		e := EstimateTheta(byTrait[t], est, mean)
		point, lower, upper := cal.Scale.Interval(e.Theta, e.SE, est.ConfidenceLevel)
		prof.Traits[t] = TraitEstimate{
			Trait:      t,
			Estimate:   e,
			Score:      point,
			Percentile: Percentile(e.Theta, cal.Norms[t]),
			Interval: domain.ConfidenceInterval{
				PointEstimate:   point,
				LowerBound:      lower,
				UpperBound:      upper,
				ConfidenceLevel: est.ConfidenceLevel,
			},
		}
		if e.Items == 0 {
			prof.Warnings = append(prof.Warnings, fmt.Sprintf("no responses for %s; reported at the population mean with maximal uncertainty", t))
		}

		facets := cal.Facets(t)
		if len(facets) == 0 || est.MinFacetItems <= 0 {
			continue
		}
		complete := true
		for _, f := range facets {
			if len(byFacet[t][f]) < est.MinFacetItems {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		if prof.Facets == nil {
			prof.Facets = make(map[domain.Trait]map[string]float64)
		}
		scores := make(map[string]float64, len(facets))
		for _, f := range facets {
			fe := EstimateTheta(byFacet[t][f], est, mean)
			scores[f] = cal.Scale.Display(fe.Theta)
		}
		prof.Facets[t] = scores
	}
	return prof
}
