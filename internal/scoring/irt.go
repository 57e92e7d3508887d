package scoring

import (
	"math"
)

// Theta bounds in logits.
const (
	ThetaMin = -4.0
	ThetaMax = 4.0

	gridStep = 0.01
	minProb  = 1e-300
)

// GradedItem is one Likert response in Graded Response Model form.
type GradedItem struct {
	Discrimination float64
	Thresholds     []float64
	// Category is the keyed 0-based response category.
	Category int
}

// Estimate is the result of estimating theta for one dimension.
type Estimate struct {
	Theta float64
	SE    float64
	// Items is the number of responses that contributed.
	Items int
	// Fallback is set when the grid search replaced the Newton solver.
	Fallback bool
}

func logistic(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// cumulative returns P*(>=j | theta) and its first two derivatives for the
// boundary above category j-1. j == 0 is the certain event, j == K the
// impossible one.
func cumulative(a float64, b []float64, j int, theta float64) (p, dp, d2p float64) {
	switch {
	case j <= 0:
		return 1, 0, 0
	case j > len(b):
		return 0, 0, 0
	}
	s := logistic(a * (theta - b[j-1]))
	w := s * (1 - s)
	return s, a * w, a * a * w * (1 - 2*s)
}

// CategoryProbability is P(X = c | theta) under the Graded Response Model.
func CategoryProbability(it GradedItem, theta float64) float64 {
	hi, _, _ := cumulative(it.Discrimination, it.Thresholds, it.Category, theta)
	lo, _, _ := cumulative(it.Discrimination, it.Thresholds, it.Category+1, theta)
	return hi - lo
}

// logDerivatives returns log P(X = c | theta) with its first and second
// derivatives in theta.
func logDerivatives(it GradedItem, theta float64) (lp, g, h float64) {
	hi, dhi, d2hi := cumulative(it.Discrimination, it.Thresholds, it.Category, theta)
	lo, dlo, d2lo := cumulative(it.Discrimination, it.Thresholds, it.Category+1, theta)
	p := math.Max(hi-lo, minProb)
	dp := dhi - dlo
	d2p := d2hi - d2lo
	g = dp / p
	h = d2p/p - g*g
	return math.Log(p), g, h
}

// posterior evaluates the (penalised) log-likelihood and its derivatives.
type posterior struct {
	items    []GradedItem
	useprior bool
	mean     float64
	variance float64
}

func (p posterior) eval(theta float64) (lp, g, h float64) {
	for _, it := range p.items {
		l, gi, hi := logDerivatives(it, theta)
		lp += l
		g += gi
		h += hi
	}
	if p.useprior {
		d := theta - p.mean
		lp -= d * d / (2 * p.variance)
		g -= d / p.variance
		h -= 1 / p.variance
	}
	return lp, g, h
}

// EstimateTheta finds the MAP (or ML) theta for the responses on one
// dimension. The solver is a safeguarded Newton-Raphson on the score
// function inside [ThetaMin, ThetaMax], falling back to a grid search when
// it fails to converge. With no responses it returns theta 0 at the maximal
// standard error.
func EstimateTheta(items []GradedItem, s EstimatorSettings, priorMean float64) Estimate {
	if len(items) == 0 {
		return Estimate{Theta: 0, SE: s.MaxStandardError}
	}
	post := posterior{items: items}
	if s.Method != MethodMLE {
		post.useprior = true
		post.mean = clamp(priorMean, ThetaMin, ThetaMax)
		post.variance = s.PriorSD * s.PriorSD
	}

	theta, ok := solve(post, s.Tolerance, s.MaxIterations)
	est := Estimate{Items: len(items)}
	if !ok {
		theta = gridSearch(post)
		est.Fallback = true
	}
	est.Theta = theta
	_, _, h := post.eval(theta)
	est.SE = standardError(-h, s.MaxStandardError)
	return est
}

func standardError(info, ceiling float64) float64 {
	if !(info > 0) || math.IsInf(info, 0) {
		return ceiling
	}
	return math.Min(1/math.Sqrt(info), ceiling)
}

func solve(post posterior, tol float64, maxIter int) (float64, bool) {
	lo, hi := ThetaMin, ThetaMax
	_, gLo, _ := post.eval(lo)
	if math.IsNaN(gLo) {
		return 0, false
	}
	if gLo <= 0 {
		return lo, true
	}
	_, gHi, _ := post.eval(hi)
	if math.IsNaN(gHi) {
		return 0, false
	}
	if gHi >= 0 {
		return hi, true
	}

	theta := clamp(post.mean, lo, hi)
	for i := 0; i < maxIter; i++ {
		_, g, h := post.eval(theta)
		if math.IsNaN(g) || math.IsNaN(h) {
			return 0, false
		}
		if math.Abs(g) < tol {
			return theta, true
		}
		if g > 0 {
			lo = theta
		} else {
			hi = theta
		}
		next := (lo + hi) / 2
		if h < 0 {
			if n := theta - g/h; n > lo && n < hi {
				next = n
			}
		}
		if math.Abs(next-theta) < tol || hi-lo < tol {
			return next, true
		}
		theta = next
	}
	return 0, false
}

func gridSearch(post posterior) float64 {
	best, bestLP := 0.0, math.Inf(-1)
	steps := int(math.Round((ThetaMax - ThetaMin) / gridStep))
	for i := 0; i <= steps; i++ {
		theta := ThetaMin + float64(i)*gridStep
		lp, _, _ := post.eval(theta)
		if lp > bestLP {
			best, bestLP = theta, lp
		}
	}
	return best
}

// Display maps theta onto the 0-100 score scale.
func (s Scale) Display(theta float64) float64 {
	return 100 * logistic(s.Slope*clamp(theta, ThetaMin, ThetaMax))
}

// derivative returns dDisplay/dtheta at theta.
func (s Scale) derivative(theta float64) float64 {
	p := logistic(s.Slope * clamp(theta, ThetaMin, ThetaMax))
	return 100 * s.Slope * p * (1 - p)
}

// Theta inverts Display for scores strictly inside (0, 100).
func (s Scale) Theta(score float64) float64 {
	score = clamp(score, 1e-9, 100-1e-9)
	return clamp(-math.Log(100/score-1)/s.Slope, ThetaMin, ThetaMax)
}

// Interval is the symmetric display-scale confidence interval for theta
// with standard error se, built with the delta method and clipped to [0,100].
func (s Scale) Interval(theta, se, level float64) (point, lower, upper float64) {
	point = s.Display(theta)
	half := zScore(level) * se * s.derivative(theta)
	return point, clamp(point-half, 0, 100), clamp(point+half, 0, 100)
}

// Percentile places theta against the population norm.
func Percentile(theta float64, n Norm) float64 {
	return 100 * normalCDF((theta-n.Mean)/n.SD)
}

func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// zScore is the two-sided critical value for the confidence level.
func zScore(level float64) float64 {
	return math.Sqrt2 * math.Erfinv(level)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
