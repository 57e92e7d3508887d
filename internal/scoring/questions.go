package scoring

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// seedMix decorrelates the second PCG word from the first.
const seedMix = 0x9e3779b97f4a7c15

// StartAssessment returns the questions for a tier. Without a seed they
// come in bank order; with one they are shuffled deterministically so the
// same seed always yields the same order.
func (e *Engine) StartAssessment(seed *string, assessmentType string) ([]domain.Question, error) {
	return Questions(e.cal.Load(), seed, assessmentType)
}

// Questions is StartAssessment against an explicit calibration.
func Questions(cal *Calibration, seed *string, assessmentType string) ([]domain.Question, error) {
	items, _, err := cal.TierItems(assessmentType)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Question, len(items))
	for i, it := range items {
		out[i] = toQuestion(it)
	}
	if seed != nil {
		h := xxhash.Sum64String(*seed)
		r := rand.New(rand.NewPCG(h, h^seedMix))
		r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out, nil
}

func toQuestion(it *domain.Item) domain.Question {
	q := domain.Question{
		ID:           it.ID,
		Text:         it.Text,
		ResponseType: it.ResponseType,
		Layer:        it.Layer,
		ScaleMin:     1,
		ScaleMax:     it.ResponseType.Categories(),
	}
	if it.OptionA != nil {
		q.OptionA = it.OptionA.Text
	}
	if it.OptionB != nil {
		q.OptionB = it.OptionB.Text
	}
	return q
}
