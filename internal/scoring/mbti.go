package scoring

import (
	"math"
	"strings"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

const (
	minAxisProb = 1e-6
	maxAxisProb = 1 - 1e-6
)

// AxisResult is the projected state of one MBTI axis.
type AxisResult struct {
	Axis     domain.Axis
	Evidence float64
	// First is P(first pole), e.g. P(E) for the EI axis.
	First  float64
	Winner string
}

// WinningProbability is the probability of the winning pole.
func (a AxisResult) WinningProbability() float64 {
	first, _ := a.Axis.Poles()
	if a.Winner == first {
		return a.First
	}
	return 1 - a.First
}

// MBTIProfile is the projector output; Axes follows domain.Axes order.
type MBTIProfile struct {
	Axes   []AxisResult
	Result domain.MBTIResult
}

// ProjectMBTI combines forced-choice pole evidence with weighted trait
// thetas on each axis and derives the type, its probability and an
// optional secondary type.
func ProjectMBTI(cal *Calibration, set *NormalizedSet, traits TraitProfile) MBTIProfile {
	settings := cal.MBTI
	prof := MBTIProfile{
		Axes: make([]AxisResult, 0, len(domain.Axes)),
		Result: domain.MBTIResult{
			DimensionProbabilities: make(map[string]float64, 2*len(domain.Axes)),
		},
	}

	var typ strings.Builder
	probability := 1.0
	for _, axis := range domain.Axes {
		first, second := axis.Poles()
		ev := set.PoleEvidence[first] - set.PoleEvidence[second]
		for t, w := range settings.TraitWeights[axis] {
			ev += w * traits.Traits[t].Estimate.Theta
		}
		p := clamp(logistic(settings.EvidenceScale*ev), minAxisProb, maxAxisProb)
		ar := AxisResult{Axis: axis, Evidence: ev, First: p, Winner: first}
		if p < 0.5 {
			ar.Winner = second
		}
		prof.Axes = append(prof.Axes, ar)
		prof.Result.DimensionProbabilities[first] = p
		prof.Result.DimensionProbabilities[second] = 1 - p
		typ.WriteString(ar.Winner)
		probability *= ar.WinningProbability()
	}
	prof.Result.PrimaryType = typ.String()
	prof.Result.Probability = probability
	prof.Result.SecondaryType = secondaryType(prof.Axes, settings.SecondaryMargin)
	return prof
}

// secondaryType flips the most uncertain axis when it lies within margin
// of 0.5. Ties resolve to the earliest axis.
func secondaryType(axes []AxisResult, margin float64) string {
	closest, dist := -1, math.Inf(1)
	for i, a := range axes {
		if d := math.Abs(a.First - 0.5); d < dist {
			closest, dist = i, d
		}
	}
	if closest < 0 || dist > margin {
		return ""
	}
	letters := make([]string, len(axes))
	for i, a := range axes {
		letters[i] = a.Winner
		if i == closest {
			first, second := a.Axis.Poles()
			if a.Winner == first {
				letters[i] = second
			} else {
				letters[i] = first
			}
		}
	}
	return strings.Join(letters, "")
}

// TypeConfidence is the geometric mean of the winning-pole probabilities
// rescaled to [0,1]: 0 when every axis is a coin flip, 1 when all are certain.
func (p MBTIProfile) TypeConfidence() float64 {
	if len(p.Axes) == 0 {
		return 0
	}
	logSum := 0.0
	for _, a := range p.Axes {
		logSum += math.Log(a.WinningProbability())
	}
	g := math.Exp(logSum / float64(len(p.Axes)))
	return clamp(2*g-1, 0, 1)
}
