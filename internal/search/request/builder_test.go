package request

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/filter"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/transport"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func directDescriptor(t *testing.T) *backend.Descriptor {
	t.Helper()
	tr, err := transport.NewDirectTransport(&transport.Config{APIKey: "k"})
	require.NoError(t, err)
	return backend.NewDescriptor(types.BackendDirect, "Direct", "PERPLEXITY_API_KEY", tr)
}

func relayDescriptor(t *testing.T) *backend.Descriptor {
	t.Helper()
	tr, err := transport.NewRelayTransport(&transport.Config{APIKey: "k"})
	require.NoError(t, err)
	return backend.NewDescriptor(types.BackendRelay, "Relay", "OPENROUTER_API_KEY", tr)
}

func dates(t *testing.T, after, before string) filter.DateRange {
	t.Helper()
	r, err := filter.NewDateValidator(nil).Range(after, before)
	require.NoError(t, err)
	return r
}

func TestBuild_DirectCarriesEveryOption(t *testing.T) {
	cfg := &types.ResolvedConfig{
		SearchMode:  types.Some("academic"),
		ContextSize: types.Some("high"),
		Dates:       dates(t, "2023-06-01", ""),
		Domains:     []string{"arxiv.org", "-quora.com"},
	}
	q := types.SearchQuery{Text: "  thermal runaway causes ", MaxTokens: types.Some(256), Temperature: types.Some(0.1)}

	payload, err := NewBuilder().Build(cfg, q, directDescriptor(t))
	require.NoError(t, err)
	assert.Equal(t, types.BackendDirect, payload.Backend)
	assert.False(t, payload.Stream)
	assert.Empty(t, payload.Warnings)

	body, ok := payload.Body.(*transport.DirectRequest)
	require.True(t, ok)
	assert.Equal(t, "thermal runaway causes", body.Messages[0].Content)
	assert.Equal(t, "academic", body.SearchMode)
	require.NotNil(t, body.WebSearchOptions)
	assert.Equal(t, "high", body.WebSearchOptions.SearchContextSize)
	assert.Equal(t, "06/01/2023", body.AfterDate)
	assert.Empty(t, body.BeforeDate)
	assert.Equal(t, []string{"arxiv.org", "-quora.com"}, body.DomainFilter)
	require.NotNil(t, body.MaxTokens)
	assert.Equal(t, 256, *body.MaxTokens)
}

func TestBuild_ProForcesStreaming(t *testing.T) {
	tests := []struct {
		name         string
		stream       bool
		wantWarnings int
	}{
		{"stream off is overridden", false, 1},
		{"stream already on", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &types.ResolvedConfig{SearchType: types.Some("pro"), Stream: tt.stream}
			payload, err := NewBuilder().Build(cfg, types.SearchQuery{Text: "q"}, directDescriptor(t))
			require.NoError(t, err)
			assert.True(t, payload.Stream)
			assert.True(t, payload.Body.(*transport.DirectRequest).Stream)
			assert.Len(t, payload.Warnings, tt.wantWarnings)
		})
	}
}

func TestBuild_UnsupportedOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *types.ResolvedConfig
		mention string
	}{
		{"domain filter", &types.ResolvedConfig{Domains: []string{"example.com"}}, types.OptDomainFilter},
		{"search mode", &types.ResolvedConfig{SearchMode: types.Some("academic")}, types.OptSearchMode},
		{"pro search type", &types.ResolvedConfig{SearchType: types.Some("pro")}, types.OptSearchType},
		{"recency", &types.ResolvedConfig{RecencyFilter: types.Some("week")}, types.OptRecencyFilter},
		{"dates", &types.ResolvedConfig{Dates: dates(t, "", "today")}, types.OptBeforeDate},
	}

	for _, tt := range tests {
		t.Run(tt.name+" strict", func(t *testing.T) {
			payload, err := NewBuilder().Build(tt.cfg, types.SearchQuery{Text: "q"}, relayDescriptor(t))
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedOption), err.Error())
			assert.Equal(t, string(types.BackendRelay), apperrors.ExtractBackend(err))
			assert.Contains(t, err.Error(), tt.mention)
		})

		t.Run(tt.name+" best effort", func(t *testing.T) {
			b := NewBuilder(WithPolicy(types.PolicyBestEffort))
			payload, err := b.Build(tt.cfg, types.SearchQuery{Text: "q"}, relayDescriptor(t))
			require.NoError(t, err)
			require.Len(t, payload.Warnings, 1)
			assert.Contains(t, payload.Warnings[0], tt.mention)
			assert.False(t, payload.Stream, "a dropped pro search type must not force streaming")
			_, ok := payload.Body.(*openai.ChatCompletionRequest)
			assert.True(t, ok)
		})
	}
}

func TestBuild_RelayStreams(t *testing.T) {
	payload, err := NewBuilder().Build(&types.ResolvedConfig{Stream: true}, types.SearchQuery{Text: "q"}, relayDescriptor(t))
	require.NoError(t, err)
	assert.True(t, payload.Stream)
	assert.True(t, payload.Body.(*openai.ChatCompletionRequest).Stream)
}

func TestBuild_Attachments(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "figure.png")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(img, pngHeader, 0o600))
	require.NoError(t, os.WriteFile(txt, []byte("hello world\n"), 0o600))

	q := types.SearchQuery{Text: "summarise", Files: []string{img, txt}}
	payload, err := NewBuilder().Build(&types.ResolvedConfig{}, q, directDescriptor(t))
	require.NoError(t, err)

	body := payload.Body.(*transport.DirectRequest)
	parts, ok := body.Messages[0].Content.([]transport.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "summarise", parts[0].Text)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/png;base64,")
	assert.Equal(t, "file_url", parts[2].Type)
	assert.Equal(t, "notes.txt", parts[2].FileName)
}

func TestBuild_AttachmentErrors(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, 64), 0o600))

	tests := []struct {
		name string
		b    *Builder
		d    func(t *testing.T) *backend.Descriptor
		file string
		code int
	}{
		{"missing file", NewBuilder(), directDescriptor, filepath.Join(dir, "nope.pdf"), apperrors.ErrAttachmentUnreadable},
		{"directory", NewBuilder(), directDescriptor, dir, apperrors.ErrAttachmentUnreadable},
		{"too large", NewBuilder(WithMaxAttachmentBytes(16)), directDescriptor, big, apperrors.ErrAttachmentTooLarge},
		{"relay rejects before reading", NewBuilder(), relayDescriptor, filepath.Join(dir, "nope.pdf"), apperrors.ErrUnsupportedOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := types.SearchQuery{Text: "q", Files: []string{tt.file}}
			_, err := tt.b.Build(&types.ResolvedConfig{}, q, tt.d(t))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.code), err.Error())
			assert.True(t, apperrors.IsConfigError(apperrors.ExtractCode(err)))
		})
	}
}

func TestBuild_DescriptorWithoutClient(t *testing.T) {
	d := backend.NewDescriptor(types.BackendDirect, "Direct", "PERPLEXITY_API_KEY", nil)
	_, err := NewBuilder().Build(&types.ResolvedConfig{}, types.SearchQuery{Text: "q"}, d)
	assert.True(t, apperrors.Is(err, apperrors.ErrSetupIncomplete))
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(WithPolicy(""), WithMaxAttachmentBytes(-1))
	assert.Equal(t, types.PolicyStrict, b.Policy())
	assert.Equal(t, DefaultMaxAttachmentBytes, b.maxAttachmentBytes)
}
