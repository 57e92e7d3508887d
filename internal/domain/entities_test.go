package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResponseTypeCategories(t *testing.T) {
	tests := []struct {
		rt       ResponseType
		expected int
		likert   bool
	}{
		{Likert7, 7, true},
		{Likert5, 5, true},
		{ForcedChoice, 2, false},
		{ResponseType("slider"), 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.rt), func(t *testing.T) {
			if got := tt.rt.Categories(); got != tt.expected {
				t.Errorf("Categories() = %d, want %d", got, tt.expected)
			}
			if got := tt.rt.IsLikert(); got != tt.likert {
				t.Errorf("IsLikert() = %v, want %v", got, tt.likert)
			}
		})
	}
}

func TestAxisPoles(t *testing.T) {
	for _, a := range Axes {
		first, second := a.Poles()
		if first == "" || second == "" || first == second {
			t.Fatalf("bad poles for %s", a)
		}
		if got, ok := AxisForPole(first); !ok || got != a {
			t.Errorf("AxisForPole(%s) = %s, %v", first, got, ok)
		}
		if got, ok := AxisForPole(second); !ok || got != a {
			t.Errorf("AxisForPole(%s) = %s, %v", second, got, ok)
		}
	}
	if _, ok := AxisForPole("X"); ok {
		t.Errorf("expected X to be rejected")
	}
}

func TestTraitValid(t *testing.T) {
	for _, tr := range Traits {
		if !tr.Valid() {
			t.Errorf("%s should be valid", tr)
		}
	}
	if Trait("honesty").Valid() {
		t.Errorf("honesty should not be a Big Five trait")
	}
}

func TestAnswerJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Answer
		want string
	}{
		{"likert", Likert("Q1", 4), `{"question_id":"Q1","response_value":4}`},
		{"choice", Choice("Q161", OptionB), `{"question_id":"Q161","selected_option":"b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
			var back Answer
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tt.in {
				t.Errorf("round trip mismatch: %+v vs %+v", back, tt.in)
			}
		})
	}
}

func TestAnswerJSON_RejectsBothModalities(t *testing.T) {
	var a Answer
	err := json.Unmarshal([]byte(`{"question_id":"Q1","response_value":3,"selected_option":"a"}`), &a)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	err = json.Unmarshal([]byte(`{"question_id":"Q1"}`), &a)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse for empty answer, got %v", err)
	}
}

func TestDecodeWire(t *testing.T) {
	fc := &Item{ID: "Q161", ResponseType: ForcedChoice}
	lk := &Item{ID: "Q1", ResponseType: Likert7}

	if got := DecodeWire(WireResponse{QuestionID: "Q161", Value: 1}, fc); got != Choice("Q161", OptionA) {
		t.Errorf("value 1 should select a, got %+v", got)
	}
	if got := DecodeWire(WireResponse{QuestionID: "Q161", Value: 2}, fc); got != Choice("Q161", OptionB) {
		t.Errorf("value 2 should select b, got %+v", got)
	}
	got := DecodeWire(WireResponse{QuestionID: "Q161", Value: 5}, fc)
	if c, ok := got.Response.(ChoiceResponse); !ok || c.Option.Valid() {
		t.Errorf("value 5 should decode to an invalid option, got %+v", got)
	}
	if got := DecodeWire(WireResponse{QuestionID: "Q1", Value: 6}, lk); got != Likert("Q1", 6) {
		t.Errorf("likert decode mismatch: %+v", got)
	}
	if got := DecodeWire(WireResponse{QuestionID: "Q999", Value: 3}, nil); got != Likert("Q999", 3) {
		t.Errorf("unknown item should decode as likert, got %+v", got)
	}
}
