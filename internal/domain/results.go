package domain

// AssessmentResult is the full scoring contract returned for a submission.
// Every top-level section is always present.
type AssessmentResult struct {
	BigFive                BigFiveResult   `json:"big_five"`
	MBTI                   MBTIResult      `json:"mbti"`
	CognitiveFunctions     CognitiveResult `json:"cognitive_functions"`
	PersonalityCluster     ClusterResult   `json:"personality_cluster"`
	JungianDepth           JungianResult   `json:"jungian_depth"`
	Interpretation         string          `json:"interpretation"`
	DevelopmentSuggestions []string        `json:"development_suggestions"`
	ConfidenceWarning      string          `json:"confidence_warning,omitempty"`
	Meta                   *ResultMeta     `json:"meta,omitempty"`
}

// ConfidenceInterval is expressed on the 0-100 display scale.
type ConfidenceInterval struct {
	PointEstimate   float64 `json:"point_estimate"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

type BigFiveResult struct {
	Scores              map[Trait]float64            `json:"scores"`
	Percentiles         map[Trait]float64            `json:"percentiles"`
	ConfidenceIntervals map[Trait]ConfidenceInterval `json:"confidence_intervals"`
	FacetScores         map[Trait]map[string]float64 `json:"facet_scores,omitempty"`
}

type MBTIResult struct {
	PrimaryType            string             `json:"primary_type"`
	Probability            float64            `json:"probability"`
	SecondaryType          string             `json:"secondary_type,omitempty"`
	DimensionProbabilities map[string]float64 `json:"dimension_probabilities"`
}

type CognitiveResult struct {
	PrimaryStack      []string           `json:"primary_stack"`
	DevelopmentLevels map[string]float64 `json:"development_levels"`
	ShadowFunctions   []string           `json:"shadow_functions,omitempty"`
}

type ClusterResult struct {
	PrimaryCluster       int       `json:"primary_cluster"`
	ClusterProbabilities []float64 `json:"cluster_probabilities"`
	ClusterDescription   string    `json:"cluster_description,omitempty"`
}

type JungianResult struct {
	ShadowIntegration  float64            `json:"shadow_integration"`
	ArchetypeProfile   map[string]float64 `json:"archetype_profile,omitempty"`
	IndividuationStage string             `json:"individuation_stage,omitempty"`
}

// ResultMeta describes how a result was produced.
type ResultMeta struct {
	AssessmentType     string `json:"assessment_type"`
	CalibrationVersion string `json:"calibration_version"`
	ResponsesUsed      int    `json:"responses_used"`
	ResponsesDropped   int    `json:"responses_dropped"`
}
