package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

const (
	DefaultRelayBaseURL = "https://openrouter.ai/api/v1"
	DefaultRelayModel   = "perplexity/sonar-pro"
)

// RelayTransport reaches the search model through an OpenAI-compatible
// relay. The relay schema has no search options, so only streaming is
// advertised.
type RelayTransport struct {
	config *Config
	client *openai.Client
}

// NewRelayTransport creates a Relay transport
func NewRelayTransport(config *Config) (Transport, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, apperrors.New(apperrors.ErrCredentialMissing).WithBackend(string(types.BackendRelay))
	}

	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRelayBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultRelayModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &headerDoer{client: cfg.httpClient(), headers: cfg.Headers}

	return &RelayTransport{config: &cfg, client: openai.NewClientWithConfig(clientCfg)}, nil
}

// ID returns the backend ID
func (t *RelayTransport) ID() types.BackendID {
	return types.BackendRelay
}

// Capabilities returns the reduced relay option set
func (t *RelayTransport) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(types.CapStreaming)
}

// Encode builds an OpenAI-protocol chat completion request
func (t *RelayTransport) Encode(req *types.WireRequest) (any, error) {
	if len(req.Attachments) > 0 {
		return nil, apperrors.Newf(apperrors.ErrUnsupportedOption, "%s on %s", types.OptAttachments, t.ID()).
			WithBackend(string(t.ID()))
	}

	body := &openai.ChatCompletionRequest{
		Model: t.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Query},
		},
		Stream: req.Stream,
	}
	if v, ok := req.MaxTokens.Get(); ok {
		body.MaxTokens = v
	}
	if v, ok := req.Temperature.Get(); ok {
		body.Temperature = float32(v)
	}
	return body, nil
}

// Execute sends the request through the relay
func (t *RelayTransport) Execute(ctx context.Context, payload *types.Payload, streaming bool) (*Response, error) {
	body, ok := payload.Body.(*openai.ChatCompletionRequest)
	if !ok {
		return nil, unexpectedBody(t.ID(), payload.Body)
	}
	body.Stream = streaming

	if !streaming {
		resp, err := t.client.CreateChatCompletion(ctx, *body)
		if err != nil {
			return nil, t.mapError(err)
		}
		return &Response{Backend: t.ID(), Completion: &resp}, nil
	}

	body.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	stream, err := t.client.CreateChatCompletionStream(ctx, *body)
	if err != nil {
		return nil, t.mapError(err)
	}

	return &Response{
		Backend:   t.ID(),
		Streaming: true,
		Chunks:    t.pump(ctx, stream),
	}, nil
}

// pump forwards raw relay frames as chunks. Frames are decoded with the
// same tolerant decoder as Direct so relay citations survive.
func (t *RelayTransport) pump(ctx context.Context, stream *openai.ChatCompletionStream) <-chan types.StreamChunk {
	ch := make(chan types.StreamChunk, 16)

	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(c types.StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			raw, err := stream.RecvRaw()
			if errors.Is(err, io.EOF) {
				send(types.StreamChunk{Terminal: true})
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					send(types.StreamChunk{Err: t.mapStreamError(err)})
				}
				return
			}

			chunk := DecodeFrame(t.ID(), raw)
			if !send(chunk) || chunk.Err != nil {
				return
			}
		}
	}()

	return ch
}

func (t *RelayTransport) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return rejected(t.ID(), apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := reqErr.Error()
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return rejected(t.ID(), reqErr.HTTPStatusCode, msg)
	}
	return classify(t.ID(), err)
}

func (t *RelayTransport) mapStreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return t.mapError(err)
	}
	if apperrors.IsTimeout(err) {
		return classify(t.ID(), err)
	}
	return apperrors.Wrap(err, apperrors.ErrStreamInterrupted).WithBackend(string(t.ID()))
}

// headerDoer adds configured headers to every relay request
type headerDoer struct {
	client  *http.Client
	headers map[string]string
}

func (d *headerDoer) Do(req *http.Request) (*http.Response, error) {
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
	return d.client.Do(req)
}
