package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/observability"
)

// Evidence is one accepted response mapped onto its item.
type Evidence struct {
	Item *domain.Item
	// Category is the keyed 0-based response category (Likert only);
	// reverse-scored items are already flipped.
	Category int
	// Normalized is the keyed evidence (value - midpoint) / half-range in
	// [-1, 1] (Likert only).
	Normalized float64
	// Scores holds the chosen option's deltas (forced choice only).
	Scores map[string]float64
}

// NormalizedSet is the deduplicated evidence for one submission.
type NormalizedSet struct {
	AssessmentType string
	// Evidence is ordered by item bank position.
	Evidence []Evidence
	// Dropped lists responses that were ignored, in submission order.
	Dropped []domain.ResponseIssue
	// PrimaryCount is the number of qualifying primary-layer responses.
	PrimaryCount int
	Required     int
	// PoleEvidence sums forced-choice deltas per MBTI pole letter.
	PoleEvidence map[string]float64
	// TraitNudges sums forced-choice deltas per Big Five trait.
	TraitNudges map[domain.Trait]float64
}

// Normalize deduplicates answers (last write in list order wins), drops
// unknown, out-of-tier and malformed responses with a warning, converts the
// rest to evidence and enforces the tier's primary-layer minimum.
func Normalize(ctx context.Context, cal *Calibration, assessmentType string, answers []domain.Answer) (*NormalizedSet, error) {
	if assessmentType == "" {
		assessmentType = DefaultAssessmentType
	}
	tierItems, tier, err := cal.TierItems(assessmentType)
	if err != nil {
		return nil, err
	}
	inTier := make(map[string]bool, len(tierItems))
	for _, it := range tierItems {
		inTier[it.ID] = true
	}

	set := &NormalizedSet{
		AssessmentType: assessmentType,
		Required:       tier.MinPrimary,
		PoleEvidence:   make(map[string]float64),
		TraitNudges:    make(map[domain.Trait]float64),
	}

	latest := make(map[string]domain.Answer, len(answers))
	order := make([]string, 0, len(answers))
	for _, a := range answers {
		if _, seen := latest[a.QuestionID]; !seen {
			order = append(order, a.QuestionID)
		}
		latest[a.QuestionID] = a
	}

	lg := observability.LoggerFromContext(ctx)
	accepted := make([]int, 0, len(order))
	byIndex := make(map[int]Evidence, len(order))
	for _, id := range order {
		a := latest[id]
		item, ok := cal.Item(id)
		if !ok {
			set.drop(lg, domain.ResponseIssue{QuestionID: id, Kind: domain.IssueUnknownItem})
			continue
		}
		if !inTier[id] {
			set.drop(lg, domain.ResponseIssue{QuestionID: id, Kind: domain.IssueOutsideTier, Detail: "not part of " + assessmentType})
			continue
		}
		ev, issue := toEvidence(item, a.Response)
		if issue != "" {
			set.drop(lg, domain.ResponseIssue{QuestionID: id, Kind: domain.IssueMalformed, Detail: issue})
			continue
		}
		idx := cal.index[id]
		accepted = append(accepted, idx)
		byIndex[idx] = ev
	}
	sort.Ints(accepted)

	set.Evidence = make([]Evidence, 0, len(accepted))
	for _, idx := range accepted {
		ev := byIndex[idx]
		set.Evidence = append(set.Evidence, ev)
		if ev.Item.Layer == domain.LayerPrimary && ev.Item.ResponseType.IsLikert() {
			set.PrimaryCount++
		}
		for key, v := range ev.Scores {
			if t := domain.Trait(key); t.Valid() {
				set.TraitNudges[t] += v
				continue
			}
			set.PoleEvidence[key] += v
		}
	}

	if set.PrimaryCount < set.Required {
		return nil, &domain.InsufficientDataError{Actual: set.PrimaryCount, Required: set.Required}
	}
	return set, nil
}

func (s *NormalizedSet) drop(lg *slog.Logger, issue domain.ResponseIssue) {
	s.Dropped = append(s.Dropped, issue)
	lg.Warn("response dropped",
		slog.String("question_id", issue.QuestionID),
		slog.String("reason", string(issue.Kind)),
		slog.String("detail", issue.Detail),
	)
}

// toEvidence converts a single response. A non-empty string reports why the
// response is malformed for the item.
func toEvidence(item *domain.Item, r domain.Response) (Evidence, string) {
	switch v := r.(type) {
	case domain.LikertResponse:
		if !item.ResponseType.IsLikert() {
			return Evidence{}, fmt.Sprintf("likert value given for %s item", item.ResponseType)
		}
		k := item.ResponseType.Categories()
		if v.Value < 1 || v.Value > k {
			return Evidence{}, fmt.Sprintf("value %d outside 1..%d", v.Value, k)
		}
		c := v.Value - 1
		mid := float64(k+1) / 2
		half := float64(k-1) / 2
		norm := (float64(v.Value) - mid) / half
		if item.ReverseScored {
			c = k - 1 - c
			norm = -norm
		}
		return Evidence{Item: item, Category: c, Normalized: norm}, ""
	case domain.ChoiceResponse:
		if item.ResponseType != domain.ForcedChoice {
			return Evidence{}, fmt.Sprintf("option given for %s item", item.ResponseType)
		}
		var opt *domain.ChoiceOption
		switch v.Option {
		case domain.OptionA:
			opt = item.OptionA
		case domain.OptionB:
			opt = item.OptionB
		default:
			return Evidence{}, fmt.Sprintf("option %q outside {a,b}", string(v.Option))
		}
		return Evidence{Item: item, Scores: opt.Scores}, ""
	default:
		return Evidence{}, "missing response"
	}
}
