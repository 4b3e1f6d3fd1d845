package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

const (
	DefaultDirectBaseURL = "https://api.perplexity.ai"
	DefaultDirectModel   = "sonar-pro"

	maxErrorBody = 1 << 20
)

// DirectTransport talks to the search backend's native chat completions
// endpoint over plain HTTP
type DirectTransport struct {
	config *Config
	client *http.Client
}

// NewDirectTransport creates a Direct transport
func NewDirectTransport(config *Config) (Transport, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, apperrors.New(apperrors.ErrCredentialMissing).WithBackend(string(types.BackendDirect))
	}

	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDirectBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultDirectModel
	}

	return &DirectTransport{config: &cfg, client: cfg.httpClient()}, nil
}

// ID returns the backend ID
func (t *DirectTransport) ID() types.BackendID {
	return types.BackendDirect
}

// Capabilities returns the full option set
func (t *DirectTransport) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(
		types.CapStreaming,
		types.CapDomainFilter,
		types.CapSearchMode,
		types.CapSearchType,
		types.CapContextSize,
		types.CapRecencyFilter,
		types.CapDateFilter,
		types.CapAttachments,
	)
}

// DirectRequest is the Direct wire request
type DirectRequest struct {
	Model            string            `json:"model"`
	Messages         []DirectMessage   `json:"messages"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	SearchMode       string            `json:"search_mode,omitempty"`
	WebSearchOptions *WebSearchOptions `json:"web_search_options,omitempty"`
	RecencyFilter    string            `json:"search_recency_filter,omitempty"`
	AfterDate        string            `json:"search_after_date_filter,omitempty"`
	BeforeDate       string            `json:"search_before_date_filter,omitempty"`
	DomainFilter     []string          `json:"search_domain_filter,omitempty"`
	Stream           bool              `json:"stream"`
}

// DirectMessage carries either a string or a []ContentPart
type DirectMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type WebSearchOptions struct {
	SearchType        string `json:"search_type,omitempty"`
	SearchContextSize string `json:"search_context_size,omitempty"`
}

// ContentPart is one element of a structured message content list
type ContentPart struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL *URLPart `json:"image_url,omitempty"`
	FileURL  *URLPart `json:"file_url,omitempty"`
	FileName string   `json:"file_name,omitempty"`
}

type URLPart struct {
	URL string `json:"url"`
}

// Encode builds the Direct wire request
func (t *DirectTransport) Encode(req *types.WireRequest) (any, error) {
	body := &DirectRequest{
		Model:         t.config.Model,
		Messages:      []DirectMessage{{Role: "user", Content: messageContent(req)}},
		SearchMode:    req.SearchMode.OrElse(""),
		RecencyFilter: req.RecencyFilter.OrElse(""),
		AfterDate:     req.AfterDate,
		BeforeDate:    req.BeforeDate,
		DomainFilter:  req.Domains,
		Stream:        req.Stream,
	}
	if v, ok := req.MaxTokens.Get(); ok {
		body.MaxTokens = &v
	}
	if v, ok := req.Temperature.Get(); ok {
		body.Temperature = &v
	}
	if req.SearchType.IsSet() || req.ContextSize.IsSet() {
		body.WebSearchOptions = &WebSearchOptions{
			SearchType:        req.SearchType.OrElse(""),
			SearchContextSize: req.ContextSize.OrElse(""),
		}
	}
	return body, nil
}

// messageContent keeps the query as a plain string unless attachments
// require a structured list, in which case the text leads the list
func messageContent(req *types.WireRequest) any {
	if len(req.Attachments) == 0 {
		return req.Query
	}

	parts := make([]ContentPart, 0, len(req.Attachments)+1)
	parts = append(parts, ContentPart{Type: "text", Text: req.Query})
	for _, a := range req.Attachments {
		if a.IsImage() {
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &URLPart{URL: a.DataURI()}})
			continue
		}
		parts = append(parts, ContentPart{
			Type:     "file_url",
			FileURL:  &URLPart{URL: base64.StdEncoding.EncodeToString(a.Data)},
			FileName: a.Name,
		})
	}
	return parts
}

// Execute sends the request
func (t *DirectTransport) Execute(ctx context.Context, payload *types.Payload, streaming bool) (*Response, error) {
	body, ok := payload.Body.(*DirectRequest)
	if !ok {
		return nil, unexpectedBody(t.ID(), payload.Body)
	}
	body.Stream = streaming

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, classify(t.ID(), fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, classify(t.ID(), fmt.Errorf("failed to create request: %w", err))
	}
	t.setHeaders(httpReq, streaming)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classify(t.ID(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, rejected(t.ID(), resp.StatusCode, errorMessage(data))
	}

	if streaming {
		return &Response{
			Backend:   t.ID(),
			Streaming: true,
			Chunks:    readSSE(ctx, t.ID(), resp.Body),
		}, nil
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(t.ID(), fmt.Errorf("failed to read response: %w", err))
	}
	return &Response{Backend: t.ID(), Body: data}, nil
}

func (t *DirectTransport) setHeaders(req *http.Request, streaming bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}
}
