package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// classify attributes err to backend and maps raw network failures onto
// the transport codes
func classify(backend types.BackendID, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Backend == "" {
			return appErr.WithBackend(string(backend))
		}
		return appErr
	}

	code := apperrors.ErrTransportFailed
	if apperrors.IsTimeout(err) {
		code = apperrors.ErrTimeout
	}
	return apperrors.Wrap(err, code).WithBackend(string(backend))
}

// rejected builds a RequestRejected error from a non-success status
func rejected(backend types.BackendID, status int, msg string) error {
	code := apperrors.ErrRequestRejected
	if status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		code = apperrors.ErrTimeout
	}
	return apperrors.Newf(code, "HTTP %d: %s", status, msg).WithBackend(string(backend))
}

// errorMessage extracts the embedded error message from a backend error
// body, falling back to the raw text
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "detail", "message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	if msg == "" {
		return "empty response body"
	}
	return msg
}

func unexpectedBody(backend types.BackendID, body any) error {
	return apperrors.New(apperrors.ErrUnknown, fmt.Sprintf("unexpected payload body %T", body)).WithBackend(string(backend))
}
