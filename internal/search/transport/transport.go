package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Transport executes encoded requests against one backend
type Transport interface {
	// ID returns the backend this transport talks to
	ID() types.BackendID

	// Capabilities returns the options this backend can honour
	Capabilities() types.CapabilitySet

	// Encode converts the neutral request into the backend wire body
	Encode(req *types.WireRequest) (any, error)

	// Execute sends the payload; streaming responses arrive on Response.Chunks
	Execute(ctx context.Context, payload *types.Payload, streaming bool) (*Response, error)
}

// Response is the raw outcome of one execution. Exactly one of Body,
// Completion and Chunks is populated.
type Response struct {
	Backend   types.BackendID
	Streaming bool

	// Body is a Direct non-streaming JSON document
	Body []byte

	// Completion is a Relay non-streaming response
	Completion *openai.ChatCompletionResponse

	// Chunks delivers stream frames in send order and is closed at the end
	Chunks <-chan types.StreamChunk
}

// Config holds settings shared by every transport
type Config struct {
	BaseURL string        `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	Model   string        `mapstructure:"model" json:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	APIKey  string        `mapstructure:"-" json:"-" yaml:"-"`

	// Headers are added to every outbound request
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`

	// HTTPClient overrides the pooled default client
	HTTPClient *http.Client `mapstructure:"-" json:"-" yaml:"-"`
}

const defaultTimeout = 300 * time.Second

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return NewHTTPClient(c.timeout())
}

// NewHTTPClient creates a new HTTP client with the specified timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
