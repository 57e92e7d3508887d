package httpserver

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New(validator.WithRequiredStructEnabled()) })
	return vld
}

// validationDetails maps failed fields to the tag that rejected them.
func validationDetails(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return out
}

var submissionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)

// validSubmissionID reports whether id could have been issued by Enqueue.
func validSubmissionID(id string) bool {
	return submissionIDPattern.MatchString(id)
}
