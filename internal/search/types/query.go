package types

import (
	"strings"
	"unicode/utf8"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
)

const MaxQueryLength = 8000

// SearchQuery is the immutable user input for one dispatch
type SearchQuery struct {
	Text        string       `json:"query"`
	Files       []string     `json:"files,omitempty"`
	MaxTokens   Opt[int]     `json:"max_tokens"`
	Temperature Opt[float64] `json:"temperature"`
}

// Validate checks the free-text query and numeric bounds
func (q SearchQuery) Validate() error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return apperrors.New(apperrors.ErrInvalidQuery, "query is empty")
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return apperrors.Newf(apperrors.ErrInvalidQuery, "query exceeds %d characters", MaxQueryLength)
	}
	if v, ok := q.MaxTokens.Get(); ok && v <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidOption, "max_tokens must be positive, got %d", v)
	}
	if v, ok := q.Temperature.Get(); ok && (v < 0 || v >= 2) {
		return apperrors.Newf(apperrors.ErrInvalidOption, "temperature must be in [0, 2), got %g", v)
	}
	return nil
}

// WithDefaults fills unset numeric bounds
func (q SearchQuery) WithDefaults(maxTokens int, temperature float64) SearchQuery {
	if !q.MaxTokens.IsSet() && maxTokens > 0 {
		q.MaxTokens = Some(maxTokens)
	}
	if !q.Temperature.IsSet() {
		q.Temperature = Some(temperature)
	}
	return q
}
