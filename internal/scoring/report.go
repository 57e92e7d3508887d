package scoring

import (
	"math"
	"strings"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// balancedBand is how far from 50 the most extreme trait must be before the
// interpretation is keyed on it.
const balancedBand = 5.0

type reportInput struct {
	traits    TraitProfile
	mbti      MBTIProfile
	cognitive domain.CognitiveResult
	cluster   domain.ClusterResult
	jungian   domain.JungianResult
	warnings  []string
	meta      *domain.ResultMeta
}

// assemble packages every component into the result contract and renders
// the interpretation and suggestions from the calibration templates.
func assemble(cal *Calibration, in reportInput) domain.AssessmentResult {
	bf := domain.BigFiveResult{
		Scores:              make(map[domain.Trait]float64, len(domain.Traits)),
		Percentiles:         make(map[domain.Trait]float64, len(domain.Traits)),
		ConfidenceIntervals: make(map[domain.Trait]domain.ConfidenceInterval, len(domain.Traits)),
		FacetScores:         in.traits.Facets,
	}
	for _, t := range domain.Traits {
		e := in.traits.Traits[t]
		bf.Scores[t] = e.Score
		bf.Percentiles[t] = e.Percentile
		bf.ConfidenceIntervals[t] = e.Interval
	}

	typ := in.mbti.Result.PrimaryType
	clusterLabel := ""
	if in.cluster.PrimaryCluster < len(cal.Clusters.Centroids) {
		clusterLabel = cal.Clusters.Centroids[in.cluster.PrimaryCluster].Label
	}
	tpl := cal.Templates

	dominant, dominantKey := dominantTrait(bf.Scores)
	var parts []string
	if s := tpl.Interpretation[dominantKey]; s != "" {
		parts = append(parts, render(s, typ, string(dominant), "", in.jungian.IndividuationStage, clusterLabel))
	}
	if s := tpl.Temperament[temperament(typ)]; s != "" {
		parts = append(parts, render(s, typ, string(dominant), "", in.jungian.IndividuationStage, clusterLabel))
	}
	interpretation := strings.Join(parts, " ")
	if interpretation == "" {
		interpretation = tpl.Fallback
	}

	var suggestions []string
	lowest := lowestTrait(bf.Scores)
	if s := tpl.TraitSuggestions[string(lowest)]; s != "" {
		suggestions = append(suggestions, render(s, typ, string(lowest), "", in.jungian.IndividuationStage, clusterLabel))
	}
	if n := len(in.cognitive.PrimaryStack); n > 0 {
		inferior := in.cognitive.PrimaryStack[n-1]
		if s := tpl.FunctionSuggestions[inferior]; s != "" {
			suggestions = append(suggestions, render(s, typ, string(lowest), inferior, in.jungian.IndividuationStage, clusterLabel))
		}
	}
	if s := tpl.StageSuggestions[in.jungian.IndividuationStage]; s != "" {
		suggestions = append(suggestions, render(s, typ, string(lowest), "", in.jungian.IndividuationStage, clusterLabel))
	}
	if len(suggestions) == 0 {
		suggestions = []string{tpl.Fallback}
	}

	return domain.AssessmentResult{
		BigFive:                bf,
		MBTI:                   in.mbti.Result,
		CognitiveFunctions:     in.cognitive,
		PersonalityCluster:     in.cluster,
		JungianDepth:           in.jungian,
		Interpretation:         interpretation,
		DevelopmentSuggestions: suggestions,
		ConfidenceWarning:      strings.Join(in.warnings, "; "),
		Meta:                   in.meta,
	}
}

func render(tpl, typ, trait, function, stage, cluster string) string {
	return strings.NewReplacer(
		"{type}", typ,
		"{trait}", trait,
		"{function}", function,
		"{stage}", stage,
		"{cluster}", cluster,
	).Replace(tpl)
}

// dominantTrait picks the trait furthest from 50 (first in OCEAN order on
// ties) and its template key.
func dominantTrait(scores map[domain.Trait]float64) (domain.Trait, string) {
	best, bestDist := domain.Traits[0], -1.0
	for _, t := range domain.Traits {
		if d := math.Abs(scores[t] - 50); d > bestDist {
			best, bestDist = t, d
		}
	}
	if bestDist < balancedBand {
		return best, "balanced"
	}
	if scores[best] >= 50 {
		return best, string(best) + "_high"
	}
	return best, string(best) + "_low"
}

// lowestTrait is the development target. Neuroticism is inverted since a
// high score is the one worth working on.
func lowestTrait(scores map[domain.Trait]float64) domain.Trait {
	best, bestScore := domain.Traits[0], math.Inf(1)
	for _, t := range domain.Traits {
		s := scores[t]
		if t == domain.Neuroticism {
			s = 100 - s
		}
		if s < bestScore {
			best, bestScore = t, s
		}
	}
	return best
}

// temperament returns NT, NF, SJ or SP for a four-letter type.
func temperament(typ string) string {
	if len(typ) != 4 {
		return ""
	}
	if typ[1] == 'N' {
		return "N" + typ[2:3]
	}
	return "S" + typ[3:4]
}
