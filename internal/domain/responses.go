package domain

import (
	"encoding/json"
	"fmt"
)

// Option is a forced-choice selection.
type Option string

const (
	OptionA Option = "a"
	OptionB Option = "b"
)

// Valid reports whether o is a or b.
func (o Option) Valid() bool { return o == OptionA || o == OptionB }

// Response is the answer to one item: either a LikertResponse or a
// ChoiceResponse, matching the item's declared ResponseType.
type Response interface {
	isResponse()
}

// LikertResponse is a rating on a 1..K scale.
type LikertResponse struct{ Value int }

// ChoiceResponse is a forced-choice selection.
type ChoiceResponse struct{ Option Option }

func (LikertResponse) isResponse() {}
func (ChoiceResponse) isResponse() {}

// Answer pairs a question id with its response.
type Answer struct {
	QuestionID string
	Response   Response
}

// Likert builds a Likert answer.
func Likert(questionID string, value int) Answer {
	return Answer{QuestionID: questionID, Response: LikertResponse{Value: value}}
}

// Choice builds a forced-choice answer.
func Choice(questionID string, opt Option) Answer {
	return Answer{QuestionID: questionID, Response: ChoiceResponse{Option: opt}}
}

type answerJSON struct {
	QuestionID     string  `json:"question_id"`
	ResponseValue  *int    `json:"response_value,omitempty"`
	SelectedOption *Option `json:"selected_option,omitempty"`
}

// MarshalJSON encodes the answer with exactly one of response_value or selected_option.
func (a Answer) MarshalJSON() ([]byte, error) {
	out := answerJSON{QuestionID: a.QuestionID}
	switch r := a.Response.(type) {
	case LikertResponse:
		v := r.Value
		out.ResponseValue = &v
	case ChoiceResponse:
		o := r.Option
		out.SelectedOption = &o
	default:
		return nil, fmt.Errorf("%w: answer %s has no response", ErrMalformedResponse, a.QuestionID)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an answer, rejecting payloads that carry both or neither modality.
func (a *Answer) UnmarshalJSON(b []byte) error {
	var in answerJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch {
	case in.ResponseValue != nil && in.SelectedOption != nil:
		return fmt.Errorf("%w: answer %s has both response_value and selected_option", ErrMalformedResponse, in.QuestionID)
	case in.ResponseValue != nil:
		*a = Likert(in.QuestionID, *in.ResponseValue)
	case in.SelectedOption != nil:
		*a = Choice(in.QuestionID, *in.SelectedOption)
	default:
		return fmt.Errorf("%w: answer %s has no response", ErrMalformedResponse, in.QuestionID)
	}
	return nil
}

// WireResponse is the HTTP boundary form {questionId, value}. For
// forced-choice items value 1 selects option a and 2 selects option b.
type WireResponse struct {
	QuestionID string `json:"questionId" validate:"required,max=64"`
	Value      int    `json:"value" validate:"min=1,max=7"`
}

// DecodeWire converts a wire response using the item's declared response
// type. Unknown items are decoded as Likert so the normalizer can report them.
func DecodeWire(w WireResponse, item *Item) Answer {
	if item != nil && item.ResponseType == ForcedChoice {
		switch w.Value {
		case 1:
			return Choice(w.QuestionID, OptionA)
		case 2:
			return Choice(w.QuestionID, OptionB)
		default:
			return Choice(w.QuestionID, Option(fmt.Sprintf("%d", w.Value)))
		}
	}
	return Likert(w.QuestionID, w.Value)
}
