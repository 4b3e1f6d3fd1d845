package transport

import (
	"github.com/tidwall/gjson"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// DecodeFrame converts one stream frame into a chunk. Frames that are not
// a JSON object come back marked malformed instead of failing.
func DecodeFrame(backend types.BackendID, data []byte) types.StreamChunk {
	if !gjson.ValidBytes(data) {
		return types.StreamChunk{Malformed: true}
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return types.StreamChunk{Malformed: true}
	}

	if e := r.Get("error"); e.Exists() {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.String()
		}
		return types.StreamChunk{
			Err: apperrors.New(apperrors.ErrRequestRejected, msg).WithBackend(string(backend)),
		}
	}

	chunk := types.StreamChunk{
		Text:  r.Get("choices.0.delta.content").String(),
		Model: r.Get("model").String(),
	}
	if c, ok := Citations(r); ok {
		chunk.Citations = types.Some(c)
	}
	if u := r.Get("usage"); u.IsObject() {
		chunk.Usage = types.Some(Usage(u))
	}
	return chunk
}

// Citations builds the ordinal citation list from a response object. URLs
// come from "citations"; titles are matched from "search_results", which
// also serve as the list when no plain citations are present.
func Citations(r gjson.Result) ([]types.Citation, bool) {
	urls := r.Get("citations")
	results := r.Get("search_results")
	if !urls.IsArray() && !results.IsArray() {
		return nil, false
	}

	type meta struct{ title, date string }
	byURL := make(map[string]meta)
	var fromResults []types.Citation
	for _, sr := range results.Array() {
		u := sr.Get("url").String()
		if u == "" {
			continue
		}
		m := meta{title: sr.Get("title").String(), date: sr.Get("date").String()}
		if _, seen := byURL[u]; !seen {
			byURL[u] = m
		}
		fromResults = append(fromResults, types.Citation{URL: u, Title: m.title, Date: m.date})
	}

	var out []types.Citation
	if urls.IsArray() && len(urls.Array()) > 0 {
		for _, u := range urls.Array() {
			url := u.String()
			if u.IsObject() {
				url = u.Get("url").String()
			}
			if url == "" {
				continue
			}
			m := byURL[url]
			out = append(out, types.Citation{URL: url, Title: m.title, Date: m.date})
		}
	} else {
		out = fromResults
	}

	for i := range out {
		out[i].Ordinal = i + 1
	}
	if out == nil {
		out = []types.Citation{}
	}
	return out, true
}

// Usage reads the token counters of a usage object
func Usage(u gjson.Result) types.Usage {
	usage := types.Usage{
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:      int(u.Get("total_tokens").Int()),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}
