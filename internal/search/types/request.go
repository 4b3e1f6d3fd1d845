package types

import (
	"encoding/base64"
	"strings"
)

// Attachment is a local file loaded for embedding next to the query text
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// IsImage reports whether the attachment should be sent as an image part
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIME, "image/")
}

// DataURI returns the attachment as a base64 data URI
func (a Attachment) DataURI() string {
	return "data:" + a.MIME + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// WireRequest is the backend-neutral request handed to a transport encoder.
// Options a backend cannot honour have already been removed or rejected.
type WireRequest struct {
	Query       string
	Attachments []Attachment
	MaxTokens   Opt[int]
	Temperature Opt[float64]

	SearchMode    Opt[string]
	SearchType    Opt[string]
	ContextSize   Opt[string]
	RecencyFilter Opt[string]
	AfterDate     string
	BeforeDate    string
	Domains       []string

	Stream bool
}

// Payload is an encoded request ready for one backend
type Payload struct {
	Backend  BackendID
	Stream   bool
	Body     any
	Warnings []string
}
