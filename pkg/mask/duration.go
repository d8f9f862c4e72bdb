package mask

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

var (
	// durationPartial accepts the prefixes a user types on the way to a full
	// H{1,2}:M{1,2}(:S{1,2})? value.
	durationPartial = regexp.MustCompile(`^\d{1,2}(:(\d{1,2}(:\d{0,2})?)?)?$`)
	durationFull    = regexp.MustCompile(`^\d{1,2}:\d{1,2}(:\d{1,2})?$`)
)

type durationSpec struct{}

// Duration is parse-only: the input is stored verbatim when it is a valid
// (partial) duration and rejected otherwise.
func Duration() Spec { return durationSpec{} }

func (durationSpec) Kind() Kind { return KindDuration }

func (durationSpec) Apply(raw string) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}, nil
	}
	if !durationPartial.MatchString(trimmed) {
		return Result{}, ErrRejected
	}
	return Result{Display: trimmed, Canonical: trimmed}, nil
}

func (durationSpec) Format(canonical any) string {
	return model.StringOf(canonical)
}

// IsCompleteDuration reports whether value matches the full
// H{1,2}:M{1,2}(:S{1,2})? shape.
func IsCompleteDuration(value string) bool {
	return durationFull.MatchString(strings.TrimSpace(value))
}
