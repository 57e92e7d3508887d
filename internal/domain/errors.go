package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnavailable       = errors.New("unavailable")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrUnknownItem       = errors.New("unknown item reference")
	ErrMalformedResponse = errors.New("malformed response value")
	ErrCalibration       = errors.New("calibration invalid")
	ErrInternal          = errors.New("internal error")
)

// InsufficientDataError reports fewer qualifying primary-layer responses than required.
type InsufficientDataError struct {
	Actual   int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d qualifying responses, %d required", e.Actual, e.Required)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// CalibrationLoadError lists every invariant violation found in an item bank or
// calibration set. It is fatal at startup.
type CalibrationLoadError struct {
	Problems []string
}

func (e *CalibrationLoadError) Error() string {
	if len(e.Problems) == 1 {
		return "calibration invalid: " + e.Problems[0]
	}
	return fmt.Sprintf("calibration invalid: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *CalibrationLoadError) Unwrap() error { return ErrCalibration }

// IssueKind classifies a dropped response.
type IssueKind string

const (
	IssueUnknownItem IssueKind = "unknown_item"
	IssueMalformed   IssueKind = "malformed_value"
	IssueOutsideTier IssueKind = "outside_tier"
)

// ResponseIssue describes a response that was dropped during normalization.
type ResponseIssue struct {
	QuestionID string
	Kind       IssueKind
	Detail     string
}

func (e *ResponseIssue) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.QuestionID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.QuestionID, e.Detail)
}

func (e *ResponseIssue) Unwrap() error {
	if e.Kind == IssueMalformed {
		return ErrMalformedResponse
	}
	return ErrUnknownItem
}
