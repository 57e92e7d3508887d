package scoring

import (
	"fmt"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// Reference bank layout.
const (
	refPrimaryItems      = 160
	refForcedChoiceItems = 24
	refTertiaryItems     = 16
	refShadowItems       = 6
)

var referenceFacets = map[domain.Trait][4]string{
	domain.Openness:          {"imagination", "artistic_interests", "intellect", "adventurousness"},
	domain.Conscientiousness: {"orderliness", "dutifulness", "achievement_striving", "self_discipline"},
	domain.Extraversion:      {"friendliness", "gregariousness", "assertiveness", "activity_level"},
	domain.Agreeableness:     {"trust", "altruism", "cooperation", "modesty"},
	domain.Neuroticism:       {"anxiety", "anger", "depression", "vulnerability"},
}

// referenceNudges maps an axis to the Big Five trait its poles nudge and the
// sign applied when the first pole is chosen.
var referenceNudges = map[domain.Axis]struct {
	trait domain.Trait
	sign  float64
}{
	domain.AxisEI: {domain.Extraversion, 1},
	domain.AxisSN: {domain.Openness, -1},
	domain.AxisTF: {domain.Agreeableness, -1},
	domain.AxisJP: {domain.Conscientiousness, 1},
}

// ReferenceArchetypes is the archetype vocabulary of the reference calibration.
var ReferenceArchetypes = []string{
	"Innocent", "Everyman", "Hero", "Caregiver", "Explorer", "Rebel",
	"Lover", "Creator", "Jester", "Sage", "Magician", "Ruler",
}

// ReferenceCalibration builds the built-in calibration. Its item parameters
// are illustrative placeholders with the right shape (160 primary Likert
// items, 24 forced-choice items, 16 tertiary items); they are not fitted to
// any sample and must be replaced by a calibration file for real use.
func ReferenceCalibration() *Calibration {
	c := &Calibration{
		Name:       "reference-uncalibrated",
		Items:      referenceItems(),
		Archetypes: append([]string(nil), ReferenceArchetypes...),
		Estimator: EstimatorSettings{
			Method:                  MethodMAP,
			PriorSD:                 1.0,
			ForcedChoicePriorWeight: 0.1,
			MaxStandardError:        4.0,
			ConfidenceLevel:         0.95,
			MinFacetItems:           4,
			Tolerance:               1e-9,
			MaxIterations:           100,
		},
		Scale: Scale{Slope: 1.0},
		MBTI: MBTISettings{
			EvidenceScale:   0.5,
			SecondaryMargin: 0.1,
			TraitWeights: map[domain.Axis]map[domain.Trait]float64{
				domain.AxisEI: {domain.Extraversion: 1.5},
				domain.AxisSN: {domain.Openness: -1.5},
				domain.AxisTF: {domain.Agreeableness: -1.5},
				domain.AxisJP: {domain.Conscientiousness: 1.5},
			},
		},
		TypeTable: referenceTypeTable(),
		Development: DevelopmentSettings{
			PositionWeights: []float64{1.0, 0.8, 0.55, 0.3},
			Floor:           0.4,
		},
		Clusters: ClusterSettings{
			Temperature: 15,
			Centroids: []Centroid{
				{Label: "Resilient", Description: "emotionally stable, outgoing and well organised", Scores: ocean(60, 60, 60, 60, 40)},
				{Label: "Overcontrolled", Description: "conscientious and agreeable but reserved and prone to worry", Scores: ocean(40, 60, 40, 60, 60)},
				{Label: "Undercontrolled", Description: "sociable and curious but impulsive and quick to react", Scores: ocean(60, 40, 60, 40, 60)},
				{Label: "Reserved", Description: "calm, conventional and independent", Scores: ocean(40, 40, 40, 60, 40)},
			},
		},
		Individuation: IndividuationSettings{
			Thresholds: []float64{0.25, 0.5, 0.75},
			Labels:     []string{"Early", "Emerging", "Active", "Advanced"},
		},
		Templates: referenceTemplates(),
		Norms:     make(map[domain.Trait]Norm, len(domain.Traits)),
	}
	for _, t := range domain.Traits {
		c.Norms[t] = Norm{Mean: 0, SD: 1}
	}

	discovery := make([]string, 0, 84)
	for n := 1; n <= 60; n++ {
		discovery = append(discovery, itemID(n))
	}
	for n := 161; n <= 168; n++ {
		discovery = append(discovery, itemID(n))
	}
	for n := 185; n <= 192; n++ {
		discovery = append(discovery, itemID(n))
	}
	c.Tiers = map[string]Tier{
		"core":      {MinPrimary: 160},
		"discovery": {Items: discovery, MinPrimary: 40},
	}

	if err := c.Prepare(); err != nil {
		panic(fmt.Sprintf("reference calibration is invalid: %v", err))
	}
	return c
}

func itemID(n int) string { return fmt.Sprintf("Q%d", n) }

func ocean(o, c, e, a, n float64) map[domain.Trait]float64 {
	return map[domain.Trait]float64{
		domain.Openness:          o,
		domain.Conscientiousness: c,
		domain.Extraversion:      e,
		domain.Agreeableness:     a,
		domain.Neuroticism:       n,
	}
}

func referenceItems() []domain.Item {
	items := make([]domain.Item, 0, refPrimaryItems+refForcedChoiceItems+refTertiaryItems)

	// Primary: item n cycles through the traits; every trait gets 32 items in
	// 8 blocks of 4, one item per facet per block. Odd blocks are reverse keyed.
	for n := 1; n <= refPrimaryItems; n++ {
		trait := domain.Traits[(n-1)%len(domain.Traits)]
		j := (n - 1) / len(domain.Traits)
		block := j / 4
		facet := referenceFacets[trait][j%4]
		rt := domain.Likert7
		base := []float64{-2.0, -1.2, -0.4, 0.4, 1.2, 2.0}
		if j%4 == 3 {
			rt = domain.Likert5
			base = []float64{-1.5, -0.5, 0.5, 1.5}
		}
		loc := (float64(block) - 3.5) * 0.1
		th := make([]float64, len(base))
		for i, b := range base {
			th[i] = b + loc
		}
		reverse := block%2 == 1
		keyed := "high"
		if reverse {
			keyed = "low"
		}
		items = append(items, domain.Item{
			ID:             itemID(n),
			Text:           fmt.Sprintf("Reference statement %d on %s (%s, %s-keyed)", j+1, trait, facet, keyed),
			Layer:          domain.LayerPrimary,
			Dimension:      trait,
			Facet:          facet,
			ResponseType:   rt,
			ReverseScored:  reverse,
			Discrimination: 1.3 + 0.1*float64(j%4),
			Thresholds:     th,
		})
	}

	// Forced choice: six per axis, alternating which option carries the first pole.
	for k := 0; k < refForcedChoiceItems; k++ {
		axis := domain.Axes[k%len(domain.Axes)]
		first, second := axis.Poles()
		nudge := referenceNudges[axis]
		favoursFirst := (k/len(domain.Axes))%2 == 0
		firstOpt := &domain.ChoiceOption{
			Text:   fmt.Sprintf("Prefers the %s way", first),
			Scores: map[string]float64{first: 1, string(nudge.trait): 0.5 * nudge.sign},
		}
		secondOpt := &domain.ChoiceOption{
			Text:   fmt.Sprintf("Prefers the %s way", second),
			Scores: map[string]float64{second: 1, string(nudge.trait): -0.5 * nudge.sign},
		}
		a, b := firstOpt, secondOpt
		if !favoursFirst {
			a, b = secondOpt, firstOpt
		}
		items = append(items, domain.Item{
			ID:           itemID(refPrimaryItems + 1 + k),
			Text:         fmt.Sprintf("Which describes you better? (%s %d)", axis, k/len(domain.Axes)+1),
			Layer:        domain.LayerSecondary,
			ResponseType: domain.ForcedChoice,
			Axis:         axis,
			OptionA:      a,
			OptionB:      b,
		})
	}

	// Tertiary: the first six feed shadow integration, the last twelve
	// archetype affinities (each leaning on two archetypes).
	for i := 0; i < refTertiaryItems; i++ {
		it := domain.Item{
			ID:             itemID(refPrimaryItems + refForcedChoiceItems + 1 + i),
			Layer:          domain.LayerTertiary,
			ResponseType:   domain.Likert5,
			Discrimination: 1.0,
			Thresholds:     []float64{-1.5, -0.5, 0.5, 1.5},
		}
		if i < refShadowItems {
			it.ShadowWeight = 1
			it.ReverseScored = i < 4 && i%2 == 1
			it.Text = fmt.Sprintf("Reference reflection %d on accepting disowned traits", i+1)
		}
		if i >= 4 {
			n := len(ReferenceArchetypes)
			it.ArchetypeWeights = map[string]float64{
				ReferenceArchetypes[(i-4)%n]: 1.0,
				ReferenceArchetypes[(i-3)%n]: 0.5,
			}
			if it.Text == "" {
				it.Text = fmt.Sprintf("Reference reflection on the %s motif", ReferenceArchetypes[(i-4)%n])
			}
		}
		items = append(items, it)
	}
	return items
}

func referenceTypeTable() map[string][]string {
	return map[string][]string{
		"ISTJ": {"Si", "Te", "Fi", "Ne"},
		"ISFJ": {"Si", "Fe", "Ti", "Ne"},
		"INFJ": {"Ni", "Fe", "Ti", "Se"},
		"INTJ": {"Ni", "Te", "Fi", "Se"},
		"ISTP": {"Ti", "Se", "Ni", "Fe"},
		"ISFP": {"Fi", "Se", "Ni", "Te"},
		"INFP": {"Fi", "Ne", "Si", "Te"},
		"INTP": {"Ti", "Ne", "Si", "Fe"},
		"ESTP": {"Se", "Ti", "Fe", "Ni"},
		"ESFP": {"Se", "Fi", "Te", "Ni"},
		"ENFP": {"Ne", "Fi", "Te", "Si"},
		"ENTP": {"Ne", "Ti", "Fe", "Si"},
		"ESTJ": {"Te", "Si", "Ne", "Fi"},
		"ESFJ": {"Fe", "Si", "Ne", "Ti"},
		"ENFJ": {"Fe", "Ni", "Se", "Ti"},
		"ENTJ": {"Te", "Ni", "Se", "Fi"},
	}
}

func referenceTemplates() Templates {
	return Templates{
		Interpretation: map[string]string{
			"openness_high":          "As an {type}, your most distinctive trait is a strong openness to ideas and experience.",
			"openness_low":           "As an {type}, you favour the concrete and familiar over novelty.",
			"conscientiousness_high": "As an {type}, you stand out for structure, reliability and follow-through.",
			"conscientiousness_low":  "As an {type}, you keep plans loose and adapt as things unfold.",
			"extraversion_high":      "As an {type}, you draw energy from people and activity.",
			"extraversion_low":       "As an {type}, you recharge in quiet and prefer depth over breadth in company.",
			"agreeableness_high":     "As an {type}, warmth and cooperation define how you relate to others.",
			"agreeableness_low":      "As an {type}, you are direct and comfortable with disagreement.",
			"neuroticism_high":       "As an {type}, you feel events intensely and notice risks early.",
			"neuroticism_low":        "As an {type}, you stay even-keeled under pressure.",
			"balanced":               "As an {type}, your Big Five profile is close to the population average.",
		},
		Temperament: map[string]string{
			"NT": "Your {cluster} profile points to a strategic, analytical temperament.",
			"NF": "Your {cluster} profile points to an idealistic, people-focused temperament.",
			"SJ": "Your {cluster} profile points to a dependable, tradition-minded temperament.",
			"SP": "Your {cluster} profile points to a practical, action-oriented temperament.",
		},
		TraitSuggestions: map[string]string{
			"openness":          "Try one unfamiliar activity each week to stretch your {trait}.",
			"conscientiousness": "Break goals into small scheduled steps to build {trait}.",
			"extraversion":      "Plan short, low-stakes social contact to exercise {trait}.",
			"agreeableness":     "Practise summarising others' views before responding to grow {trait}.",
			"neuroticism":       "Build a short daily routine for noticing and naming stress.",
		},
		FunctionSuggestions: map[string]string{
			"Ni": "Give your inferior {function} room by reflecting on long-range patterns.",
			"Ne": "Give your inferior {function} room by brainstorming without judging ideas.",
			"Si": "Give your inferior {function} room by keeping simple routines and records.",
			"Se": "Give your inferior {function} room through physical, present-moment activity.",
			"Ti": "Give your inferior {function} room by working problems through on paper.",
			"Te": "Give your inferior {function} room by setting measurable goals.",
			"Fi": "Give your inferior {function} room by journaling about personal values.",
			"Fe": "Give your inferior {function} room by checking in on how others feel.",
		},
		StageSuggestions: map[string]string{
			"Early":    "At the {stage} stage, start by noticing reactions that feel out of character.",
			"Emerging": "At the {stage} stage, explore where strong reactions to others mirror yourself.",
			"Active":   "At the {stage} stage, deliberately practise the qualities you used to avoid.",
			"Advanced": "At the {stage} stage, help others integrate what you have already worked through.",
		},
		Fallback: "Reflect on which parts of this profile fit you best and which do not.",
	}
}
