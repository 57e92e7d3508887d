package scoring

import (
	"math"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// ClassifyCluster assigns soft membership over the calibration's prototype
// centroids: softmax of -d^2 / (2 tau^2) on the display scale. The
// maximum logit is subtracted before exponentiation; ties go to the lowest
// index.
func ClassifyCluster(cal *Calibration, scores map[domain.Trait]float64) domain.ClusterResult {
	centroids := cal.Clusters.Centroids
	tau := cal.Clusters.Temperature
	logits := make([]float64, len(centroids))
	maxLogit := math.Inf(-1)
	for i, c := range centroids {
		d2 := 0.0
		for _, t := range domain.Traits {
			d := scores[t] - c.Scores[t]
			d2 += d * d
		}
		logits[i] = -d2 / (2 * tau * tau)
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}

	probs := make([]float64, len(centroids))
	sum := 0.0
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	primary := 0
	for i := range probs {
		probs[i] /= sum
		if probs[i] > probs[primary] {
			primary = i
		}
	}

	res := domain.ClusterResult{PrimaryCluster: primary, ClusterProbabilities: probs}
	if len(centroids) > 0 {
		c := centroids[primary]
		res.ClusterDescription = c.Label
		if c.Description != "" {
			res.ClusterDescription = c.Label + ": " + c.Description
		}
	}
	return res
}
