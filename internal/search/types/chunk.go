package types

// Citation is one source backing the answer
type Citation struct {
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Date    string `json:"date,omitempty"`
}

// Usage holds token counters reported by the backend
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one incremental unit of a streaming response. Every field
// is optional; a chunk may carry any combination of them.
type StreamChunk struct {
	Text      string
	Citations Opt[[]Citation]
	Usage     Opt[Usage]
	Model     string

	// Terminal marks the end-of-stream sentinel
	Terminal bool

	// Malformed marks a frame that could not be parsed
	Malformed bool

	// Err is an I/O failure that ended the stream early
	Err error
}

// HasContent reports whether the chunk carries anything usable
func (c StreamChunk) HasContent() bool {
	return c.Text != "" || c.Citations.IsSet() || c.Usage.IsSet()
}
