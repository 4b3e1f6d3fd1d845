package errors

import (
	"fmt"
	"net/http"
)

// Kind classifies a failure for callers of the dispatcher
type Kind string

const (
	KindNone              Kind = ""
	KindConfigInvalid     Kind = "config_invalid"
	KindCredentialMissing Kind = "credential_missing"
	KindSetupIncomplete   Kind = "setup_incomplete"
	KindRequestRejected   Kind = "request_rejected"
	KindTimeout           Kind = "timeout"
	KindTransportFailed   Kind = "transport_failed"
	KindStreamCorrupted   Kind = "stream_corrupted"
	KindUnknown           Kind = "unknown"
)

// Code represents an error code with its kind, HTTP status and message
type Code struct {
	Code    int    // Business error code
	Kind    Kind   // Failure classification
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes grouped by the stage that raises them
const (
	// Success
	Success = 0

	// Configuration errors (1000-1999), raised before any network call
	ErrInvalidQuery           = 1000
	ErrUnknownPreset          = 1001
	ErrConflictingDateFilters = 1002
	ErrTooManyDomains         = 1003
	ErrInvalidDateFormat      = 1004
	ErrInvalidDateRange       = 1005
	ErrInvalidDomain          = 1006
	ErrInvalidOption          = 1007
	ErrUnsupportedOption      = 1008
	ErrAttachmentUnreadable   = 1009
	ErrAttachmentTooLarge     = 1010
	ErrUnknownMode            = 1011

	// Credential and setup errors (2000-2999)
	ErrCredentialMissing = 2000
	ErrSetupIncomplete   = 2001

	// Transport errors (3000-3999)
	ErrRequestRejected = 3000
	ErrTimeout         = 3001
	ErrTransportFailed = 3002
	ErrCircuitOpen     = 3003
	ErrInvalidResponse = 3004

	// Stream errors (4000-4999)
	ErrStreamCorrupted   = 4000
	ErrStreamInterrupted = 4001

	// Anything else
	ErrUnknown = 9000
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, KindNone, http.StatusOK, "Success"},

	ErrInvalidQuery:           {ErrInvalidQuery, KindConfigInvalid, http.StatusBadRequest, "Invalid search query"},
	ErrUnknownPreset:          {ErrUnknownPreset, KindConfigInvalid, http.StatusBadRequest, "Unknown preset"},
	ErrConflictingDateFilters: {ErrConflictingDateFilters, KindConfigInvalid, http.StatusBadRequest, "Recency filter cannot be combined with date filters"},
	ErrTooManyDomains:         {ErrTooManyDomains, KindConfigInvalid, http.StatusBadRequest, "Too many domains in domain filter"},
	ErrInvalidDateFormat:      {ErrInvalidDateFormat, KindConfigInvalid, http.StatusBadRequest, "Invalid date format"},
	ErrInvalidDateRange:       {ErrInvalidDateRange, KindConfigInvalid, http.StatusBadRequest, "Invalid date range"},
	ErrInvalidDomain:          {ErrInvalidDomain, KindConfigInvalid, http.StatusBadRequest, "Invalid domain filter entry"},
	ErrInvalidOption:          {ErrInvalidOption, KindConfigInvalid, http.StatusBadRequest, "Invalid option value"},
	ErrUnsupportedOption:      {ErrUnsupportedOption, KindConfigInvalid, http.StatusBadRequest, "Option not supported by backend"},
	ErrAttachmentUnreadable:   {ErrAttachmentUnreadable, KindConfigInvalid, http.StatusBadRequest, "Attachment cannot be read"},
	ErrAttachmentTooLarge:     {ErrAttachmentTooLarge, KindConfigInvalid, http.StatusBadRequest, "Attachment exceeds size limit"},
	ErrUnknownMode:            {ErrUnknownMode, KindConfigInvalid, http.StatusBadRequest, "Unknown backend mode"},

	ErrCredentialMissing: {ErrCredentialMissing, KindCredentialMissing, http.StatusServiceUnavailable, "No usable credential for backend"},
	ErrSetupIncomplete:   {ErrSetupIncomplete, KindSetupIncomplete, http.StatusServiceUnavailable, "Backend client not available"},

	ErrRequestRejected: {ErrRequestRejected, KindRequestRejected, http.StatusBadGateway, "Backend rejected the request"},
	ErrTimeout:         {ErrTimeout, KindTimeout, http.StatusGatewayTimeout, "Backend request timed out"},
	ErrTransportFailed: {ErrTransportFailed, KindTransportFailed, http.StatusBadGateway, "Backend connection failed"},
	ErrCircuitOpen:     {ErrCircuitOpen, KindTransportFailed, http.StatusServiceUnavailable, "Backend circuit open"},
	ErrInvalidResponse: {ErrInvalidResponse, KindUnknown, http.StatusBadGateway, "Invalid response from backend"},

	ErrStreamCorrupted:   {ErrStreamCorrupted, KindStreamCorrupted, http.StatusBadGateway, "Stream produced no usable content"},
	ErrStreamInterrupted: {ErrStreamInterrupted, KindTransportFailed, http.StatusBadGateway, "Stream interrupted"},

	ErrUnknown: {ErrUnknown, KindUnknown, http.StatusInternalServerError, "Unknown error"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrUnknown]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// GetKind returns the classification for a given error code
func GetKind(code int) Kind {
	return GetCode(code).Kind
}

// IsConfigError reports whether the code is raised before any network call
func IsConfigError(code int) bool {
	return GetKind(code) == KindConfigInvalid
}

// IsTransportError reports whether the code belongs to the transport stage
func IsTransportError(code int) bool {
	return code >= ErrRequestRejected && code < ErrStreamCorrupted
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
