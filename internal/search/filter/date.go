package filter

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
)

const (
	// CanonicalDateLayout is the single date format seen downstream of the validator
	CanonicalDateLayout = "01/02/2006"
	isoDateLayout       = "2006-01-02"
)

// DateRange is a normalized (after, before) pair. Its fields are unexported
// so the only way to obtain a non-empty range is DateValidator.Range.
type DateRange struct {
	after  string
	before string
}

// After returns the canonical lower bound, if any
func (r DateRange) After() (string, bool) {
	return r.after, r.after != ""
}

// Before returns the canonical upper bound, if any
func (r DateRange) Before() (string, bool) {
	return r.before, r.before != ""
}

// IsZero reports whether neither bound is set
func (r DateRange) IsZero() bool {
	return r.after == "" && r.before == ""
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		After  string `json:"after,omitempty"`
		Before string `json:"before,omitempty"`
	}{r.after, r.before})
}

// DateValidator normalizes date filter inputs. Relative keywords are
// evaluated against the clock on every call.
type DateValidator struct {
	now func() time.Time
}

// NewDateValidator creates a validator; a nil clock means time.Now
func NewDateValidator(now func() time.Time) *DateValidator {
	if now == nil {
		now = time.Now
	}
	return &DateValidator{now: now}
}

// Normalize converts one accepted date shape into MM/DD/YYYY
func (v *DateValidator) Normalize(input string) (string, error) {
	s := strings.TrimSpace(input)

	switch strings.ToLower(s) {
	case "today":
		return v.now().Format(CanonicalDateLayout), nil
	case "yesterday":
		return v.now().AddDate(0, 0, -1).Format(CanonicalDateLayout), nil
	}

	if t, err := time.Parse(CanonicalDateLayout, s); err == nil {
		return t.Format(CanonicalDateLayout), nil
	}
	if t, err := time.Parse(isoDateLayout, s); err == nil {
		return t.Format(CanonicalDateLayout), nil
	}

	return "", apperrors.Newf(apperrors.ErrInvalidDateFormat,
		"%q (expected MM/DD/YYYY, YYYY-MM-DD, today or yesterday)", input)
}

// Range normalizes both bounds; empty inputs leave that bound unset
func (v *DateValidator) Range(after, before string) (DateRange, error) {
	var r DateRange
	var err error

	if after != "" {
		if r.after, err = v.Normalize(after); err != nil {
			return DateRange{}, err
		}
	}
	if before != "" {
		if r.before, err = v.Normalize(before); err != nil {
			return DateRange{}, err
		}
	}

	if r.after != "" && r.before != "" {
		a, _ := time.Parse(CanonicalDateLayout, r.after)
		b, _ := time.Parse(CanonicalDateLayout, r.before)
		if a.After(b) {
			return DateRange{}, apperrors.Newf(apperrors.ErrInvalidDateRange,
				"after date %s is later than before date %s", r.after, r.before)
		}
	}

	return r, nil
}
