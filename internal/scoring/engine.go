package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

const tracerName = "scoring.engine"

// Submission is a typed set of answers for one assessment tier.
type Submission struct {
	AssessmentType string
	Answers        []domain.Answer
}

// Outcome is a scored submission together with the responses that were
// dropped on the way.
type Outcome struct {
	Result             domain.AssessmentResult
	Dropped            []domain.ResponseIssue
	CalibrationVersion string
}

// Engine scores submissions against an atomically swappable calibration.
// It is safe for concurrent use; each call works on the calibration that
// was current when it started.
type Engine struct {
	cal atomic.Pointer[Calibration]
}

// NewEngine creates an engine around a calibration, preparing it if needed.
func NewEngine(cal *Calibration) (*Engine, error) {
	e := &Engine{}
	if err := e.Reload(cal); err != nil {
		return nil, err
	}
	return e, nil
}

// Calibration returns the current calibration snapshot.
func (e *Engine) Calibration() *Calibration { return e.cal.Load() }

// Reload validates cal and swaps it in. In-flight calls keep the snapshot
// they started with. On error the current calibration stays active.
func (e *Engine) Reload(cal *Calibration) error {
	if cal == nil {
		return &domain.CalibrationLoadError{Problems: []string{"calibration is nil"}}
	}
	if !cal.prepared {
		if err := cal.Prepare(); err != nil {
			return err
		}
	}
	e.cal.Store(cal)
	return nil
}

// Score runs the full pipeline and returns the result contract.
func (e *Engine) Score(ctx context.Context, sub Submission) (domain.AssessmentResult, error) {
	out, err := e.Evaluate(ctx, sub)
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	return out.Result, nil
}

// ScoreWire decodes boundary responses against the same calibration
// snapshot used for scoring them.
func (e *Engine) ScoreWire(ctx context.Context, assessmentType string, responses []domain.WireResponse) (Outcome, error) {
	cal := e.cal.Load()
	answers := DecodeWire(cal, responses)
	return evaluate(ctx, cal, Submission{AssessmentType: assessmentType, Answers: answers})
}

// Evaluate is Score with the dropped-response report.
func (e *Engine) Evaluate(ctx context.Context, sub Submission) (Outcome, error) {
	return evaluate(ctx, e.cal.Load(), sub)
}

// DecodeWire converts {questionId, value} pairs using each item's response type.
func DecodeWire(cal *Calibration, responses []domain.WireResponse) []domain.Answer {
	answers := make([]domain.Answer, len(responses))
	for i, w := range responses {
		item, _ := cal.Item(w.QuestionID)
		answers[i] = domain.DecodeWire(w, item)
	}
	return answers
}

func evaluate(ctx context.Context, cal *Calibration, sub Submission) (Outcome, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "scoring.Score")
	defer span.End()
	span.SetAttributes(
		attribute.String("assessment.type", sub.AssessmentType),
		attribute.String("calibration.version", cal.Version()),
		attribute.Int("answers", len(sub.Answers)),
	)

	_, nspan := tracer.Start(ctx, "scoring.Normalize")
	set, err := Normalize(ctx, cal, sub.AssessmentType, sub.Answers)
	nspan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var ide *domain.InsufficientDataError
		if errors.As(err, &ide) {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("op=scoring.normalize: %w", err)
	}
	span.SetAttributes(attribute.Int("responses.dropped", len(set.Dropped)))

	_, tspan := tracer.Start(ctx, "scoring.EstimateTraits")
	traits := EstimateTraits(cal, set)
	tspan.End()

	_, mspan := tracer.Start(ctx, "scoring.ProjectMBTI")
	mbti := ProjectMBTI(cal, set, traits)
	cognitive, err := ResolveCognitive(cal, mbti)
	mspan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, fmt.Errorf("op=scoring.cognitive: %w", err)
	}

	_, cspan := tracer.Start(ctx, "scoring.ClassifyCluster")
	cluster := ClassifyCluster(cal, traits.Scores())
	cspan.End()

	_, jspan := tracer.Start(ctx, "scoring.EstimateJungian")
	jungian, sampled := EstimateJungian(cal, set)
	jspan.End()

	warnings := append([]string(nil), traits.Warnings...)
	if !sampled {
		warnings = append(warnings, "no shadow-integration responses; shadow integration is neutral")
	}

	res := assemble(cal, reportInput{
		traits:    traits,
		mbti:      mbti,
		cognitive: cognitive,
		cluster:   cluster,
		jungian:   jungian,
		warnings:  warnings,
		meta: &domain.ResultMeta{
			AssessmentType:     set.AssessmentType,
			CalibrationVersion: cal.Version(),
			ResponsesUsed:      len(set.Evidence),
			ResponsesDropped:   len(set.Dropped),
		},
	})
	span.SetAttributes(attribute.String("mbti.type", res.MBTI.PrimaryType))
	return Outcome{Result: res, Dropped: set.Dropped, CalibrationVersion: cal.Version()}, nil
}
