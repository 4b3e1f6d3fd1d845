package types

import (
	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
)

// ErrorInfo is the failure classification carried by an unsuccessful result
type ErrorInfo struct {
	Kind    apperrors.Kind `json:"kind"`
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Backend BackendID      `json:"backend,omitempty"`
}

// SearchResult is the canonical output of one dispatched query
type SearchResult struct {
	Success   bool       `json:"success"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Usage     *Usage     `json:"usage,omitempty"`
	Backend   BackendID  `json:"backend,omitempty"`
	Model     string     `json:"model,omitempty"`
	Streaming bool       `json:"streaming"`

	// Degraded is set when a stream lost frames but still produced content
	Degraded        bool     `json:"degraded,omitempty"`
	MalformedChunks int      `json:"malformed_chunks,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`

	RequestID string          `json:"request_id,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
	Config    *ResolvedConfig `json:"config,omitempty"`

	Error *ErrorInfo `json:"error,omitempty"`
}

// Failed builds an unsuccessful result from an error
func Failed(err error) *SearchResult {
	code := apperrors.ExtractCode(err)
	return &SearchResult{
		Citations: []Citation{},
		Error: &ErrorInfo{
			Kind:    apperrors.GetKind(code),
			Code:    code,
			Message: err.Error(),
			Backend: BackendID(apperrors.ExtractBackend(err)),
		},
	}
}
