// Package domain defines the item bank, response and result entities shared by
// the scoring core and its adapters, together with the ports adapters implement.
package domain

import (
	"context"
	"time"
)

// Trait enumerates the Big Five dimensions.
type Trait string

const (
	Openness          Trait = "openness"
	Conscientiousness Trait = "conscientiousness"
	Extraversion      Trait = "extraversion"
	Agreeableness     Trait = "agreeableness"
	Neuroticism       Trait = "neuroticism"
)

// Traits lists the Big Five in canonical OCEAN order.
var Traits = []Trait{Openness, Conscientiousness, Extraversion, Agreeableness, Neuroticism}

// Valid reports whether t is one of the five traits.
func (t Trait) Valid() bool {
	for _, x := range Traits {
		if x == t {
			return true
		}
	}
	return false
}

// Axis is an MBTI bipolar dimension written as its two pole letters.
type Axis string

const (
	AxisEI Axis = "EI"
	AxisSN Axis = "SN"
	AxisTF Axis = "TF"
	AxisJP Axis = "JP"
)

// Axes lists the MBTI axes in type-string order.
var Axes = []Axis{AxisEI, AxisSN, AxisTF, AxisJP}

// Poles returns the first and second pole letters of the axis.
func (a Axis) Poles() (string, string) {
	if len(a) != 2 {
		return "", ""
	}
	return string(a[0]), string(a[1])
}

// Valid reports whether a is one of the four axes.
func (a Axis) Valid() bool {
	for _, x := range Axes {
		if x == a {
			return true
		}
	}
	return false
}

// AxisForPole returns the axis a pole letter belongs to.
func AxisForPole(pole string) (Axis, bool) {
	for _, a := range Axes {
		first, second := a.Poles()
		if pole == first || pole == second {
			return a, true
		}
	}
	return "", false
}

// Layer routes an item to the estimator that consumes it.
type Layer string

const (
	LayerPrimary   Layer = "primary"
	LayerSecondary Layer = "secondary"
	LayerTertiary  Layer = "tertiary"
)

// ResponseType is the answer format of an item.
type ResponseType string

const (
	Likert7      ResponseType = "likert_7"
	Likert5      ResponseType = "likert_5"
	ForcedChoice ResponseType = "forced_choice"
)

// Categories returns the number of response categories for the type, or 0 when unknown.
func (r ResponseType) Categories() int {
	switch r {
	case Likert7:
		return 7
	case Likert5:
		return 5
	case ForcedChoice:
		return 2
	default:
		return 0
	}
}

// IsLikert reports whether the type is an ordered rating scale.
func (r ResponseType) IsLikert() bool { return r == Likert7 || r == Likert5 }

// ChoiceOption is one side of a forced-choice item. Scores are keyed by
// Big Five trait name or MBTI pole letter and applied additively.
type ChoiceOption struct {
	Text   string             `yaml:"text" json:"text"`
	Scores map[string]float64 `yaml:"scores" json:"scores"`
}

// Item is immutable item bank metadata.
// Invariants: Likert items carry a Dimension, Discrimination > 0 and
// Categories-1 strictly increasing Thresholds; forced-choice items carry an
// Axis and both options.
type Item struct {
	ID               string             `yaml:"id" json:"id"`
	Text             string             `yaml:"text,omitempty" json:"text,omitempty"`
	Layer            Layer              `yaml:"layer" json:"layer"`
	Dimension        Trait              `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	Facet            string             `yaml:"facet,omitempty" json:"facet,omitempty"`
	ResponseType     ResponseType       `yaml:"response_type" json:"response_type"`
	ReverseScored    bool               `yaml:"reverse_scored,omitempty" json:"reverse_scored,omitempty"`
	Discrimination   float64            `yaml:"discrimination,omitempty" json:"discrimination,omitempty"`
	Thresholds       []float64          `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Axis             Axis               `yaml:"axis,omitempty" json:"axis,omitempty"`
	OptionA          *ChoiceOption      `yaml:"option_a,omitempty" json:"option_a,omitempty"`
	OptionB          *ChoiceOption      `yaml:"option_b,omitempty" json:"option_b,omitempty"`
	ShadowWeight     float64            `yaml:"shadow_weight,omitempty" json:"shadow_weight,omitempty"`
	ArchetypeWeights map[string]float64 `yaml:"archetype_weights,omitempty" json:"archetype_weights,omitempty"`
}

// Question is the client-facing view of an item returned by start-assessment.
type Question struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	ResponseType ResponseType `json:"response_type"`
	Layer        Layer        `json:"layer"`
	ScaleMin     int          `json:"scale_min"`
	ScaleMax     int          `json:"scale_max"`
	OptionA      string       `json:"option_a,omitempty"`
	OptionB      string       `json:"option_b,omitempty"`
}

// SubmissionStatus enumerates async scoring states.
type SubmissionStatus string

const (
	SubmissionQueued     SubmissionStatus = "queued"
	SubmissionProcessing SubmissionStatus = "processing"
	SubmissionCompleted  SubmissionStatus = "completed"
	SubmissionFailed     SubmissionStatus = "failed"
)

// Submission is a stored set of wire responses awaiting or holding a score.
type Submission struct {
	ID             string
	AssessmentType string
	Responses      []WireResponse
	Status         SubmissionStatus
	Error          string
	IdemKey        *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StoredResult is a scored submission as persisted by the result repository.
type StoredResult struct {
	SubmissionID       string
	CalibrationVersion string
	Result             AssessmentResult
	CreatedAt          time.Time
}

// ScoreTaskPayload is the queue message for asynchronous scoring.
type ScoreTaskPayload struct {
	SubmissionID   string `json:"submission_id"`
	AssessmentType string `json:"assessment_type"`
}

// ScoredEvent is published after a submission has been scored.
type ScoredEvent struct {
	SubmissionID       string            `json:"submission_id,omitempty"`
	AssessmentType     string            `json:"assessment_type"`
	CalibrationVersion string            `json:"calibration_version"`
	PrimaryType        string            `json:"primary_type"`
	PrimaryCluster     int               `json:"primary_cluster"`
	Scores             map[Trait]float64 `json:"scores"`
	ScoredAt           time.Time         `json:"scored_at"`
}

// Repositories (ports)

//go:generate mockery --name=SubmissionRepository --structname=MockSubmissionRepository --output=mocks --filename=submission_repository_mock.go
//go:generate mockery --name=ResultRepository --structname=MockResultRepository --output=mocks --filename=result_repository_mock.go
//go:generate mockery --name=ResultCache --structname=MockResultCache --output=mocks --filename=result_cache_mock.go
//go:generate mockery --name=Queue --structname=MockQueue --output=mocks --filename=queue_mock.go
//go:generate mockery --name=EventPublisher --structname=MockEventPublisher --output=mocks --filename=event_publisher_mock.go

type SubmissionRepository interface {
	Create(ctx Context, s Submission) (string, error)
	UpdateStatus(ctx Context, id string, status SubmissionStatus, errMsg *string) error
	Get(ctx Context, id string) (Submission, error)
	FindByIdempotencyKey(ctx Context, key string) (Submission, error)
}

type ResultRepository interface {
	Upsert(ctx Context, r StoredResult) error
	GetBySubmissionID(ctx Context, submissionID string) (StoredResult, error)
}

// ResultCache stores scored results keyed by a canonical submission digest.
// A miss is reported as ok=false with a nil error.
type ResultCache interface {
	Get(ctx Context, key string) (AssessmentResult, bool, error)
	Set(ctx Context, key string, r AssessmentResult) error
}

// Queue (port)

type Queue interface {
	EnqueueScoring(ctx Context, payload ScoreTaskPayload) (string, error)
}

// EventPublisher (port)

type EventPublisher interface {
	PublishScored(ctx Context, ev ScoredEvent) error
}

// Context is an alias to keep port signatures short.
type Context = context.Context
