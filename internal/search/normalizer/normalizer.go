package normalizer

import (
	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/aggregator"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/transport"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Normalize maps a non-streaming backend response onto the canonical result
func Normalize(resp *transport.Response) (*types.SearchResult, error) {
	if resp == nil {
		return nil, apperrors.New(apperrors.ErrInvalidResponse, "no response")
	}
	switch {
	case resp.Streaming:
		return nil, apperrors.New(apperrors.ErrInvalidResponse, "streaming response must be aggregated").
			WithBackend(string(resp.Backend))
	case resp.Completion != nil:
		return fromCompletion(resp.Backend, resp.Completion)
	default:
		return fromBody(resp.Backend, resp.Body)
	}
}

func fromBody(backend types.BackendID, body []byte) (*types.SearchResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.New(apperrors.ErrInvalidResponse, "body is not JSON").WithBackend(string(backend))
	}
	doc := gjson.ParseBytes(body)

	if e := doc.Get("error"); e.Exists() {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.String()
		}
		return nil, apperrors.New(apperrors.ErrRequestRejected, msg).WithBackend(string(backend))
	}

	choice := doc.Get("choices.0")
	if !choice.Exists() {
		return nil, apperrors.New(apperrors.ErrInvalidResponse, "no choices").WithBackend(string(backend))
	}

	result := success(backend, false)
	result.Answer = choice.Get("message.content").String()
	result.Model = doc.Get("model").String()
	if c, ok := transport.Citations(doc); ok {
		result.Citations = c
	}
	if u := doc.Get("usage"); u.IsObject() {
		usage := transport.Usage(u)
		result.Usage = &usage
	}
	return result, nil
}

func fromCompletion(backend types.BackendID, resp *openai.ChatCompletionResponse) (*types.SearchResult, error) {
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidResponse, "no choices").WithBackend(string(backend))
	}

	result := success(backend, false)
	result.Answer = resp.Choices[0].Message.Content
	result.Model = resp.Model
	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 {
		result.Usage = &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// FromStream builds the result of a closed stream accumulator
func FromStream(backend types.BackendID, acc aggregator.Accumulator) *types.SearchResult {
	result := success(backend, true)
	result.Answer = acc.Answer
	result.Model = acc.Model
	result.Usage = acc.Usage
	result.Degraded = acc.Degraded()
	result.MalformedChunks = acc.Malformed
	if acc.Citations != nil {
		result.Citations = acc.Citations
	}
	return result
}

// Failure builds an unsuccessful result, attributing it to backend when
// the error does not already name one
func Failure(backend types.BackendID, err error) *types.SearchResult {
	result := types.Failed(err)
	if result.Error.Backend == "" {
		result.Error.Backend = backend
	}
	return result
}

// Classify returns the failure kind of err
func Classify(err error) apperrors.Kind {
	if err == nil {
		return apperrors.KindNone
	}
	return apperrors.GetKind(apperrors.ExtractCode(err))
}

func success(backend types.BackendID, streaming bool) *types.SearchResult {
	return &types.SearchResult{
		Success:   true,
		Citations: []types.Citation{},
		Backend:   backend,
		Streaming: streaming,
	}
}
