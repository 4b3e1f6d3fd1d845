package resolver

import (
	"fmt"
	"testing"
	"time"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/filter"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/preset"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPresets = `
presets:
  - name: everything
    options:
      search_mode: sec
      search_type: fast
      search_context_size: low
      search_recency_filter: year
      search_domain_filter: [preset.example]
      stream: false
  - name: dated
    options:
      search_after_date: "2020-01-01"
`

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	table, err := preset.Load([]byte(testPresets))
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2024, time.July, 4, 10, 0, 0, 0, time.Local) }
	return New(table, filter.NewDateValidator(clock))
}

func query(text string) types.SearchQuery {
	return types.SearchQuery{Text: text}
}

func TestResolve_ExplicitBeatsShortcutBeatsPreset(t *testing.T) {
	r := newTestResolver(t)

	// search_mode: preset=sec, shortcut=academic, explicit=web
	cfg, err := r.Resolve(query("q"), "everything", types.Shortcuts{Academic: true, Pro: true}, types.Options{
		SearchMode:    types.Some("web"),
		SearchType:    types.Some("auto"),
		ContextSize:   types.Some("high"),
		RecencyFilter: types.Some("day"),
		Domains:       types.Some([]string{"explicit.example"}),
		Stream:        types.Some(true),
	})
	require.NoError(t, err)

	assert.Equal(t, "web", cfg.SearchMode.OrElse(""))
	assert.Equal(t, "auto", cfg.SearchType.OrElse(""))
	assert.Equal(t, "high", cfg.ContextSize.OrElse(""))
	assert.Equal(t, "day", cfg.RecencyFilter.OrElse(""))
	assert.Equal(t, []string{"explicit.example"}, cfg.Domains)
	assert.True(t, cfg.Stream)
	assert.Equal(t, "everything", cfg.Preset)
}

func TestResolve_ShortcutBeatsPreset(t *testing.T) {
	r := newTestResolver(t)

	cfg, err := r.Resolve(query("q"), "everything", types.Shortcuts{Academic: true, Pro: true}, types.Options{})
	require.NoError(t, err)

	assert.Equal(t, "academic", cfg.SearchMode.OrElse(""))
	assert.Equal(t, "pro", cfg.SearchType.OrElse(""))
	assert.True(t, cfg.IsPro())
	// untouched options keep the preset value
	assert.Equal(t, "low", cfg.ContextSize.OrElse(""))
	assert.Equal(t, []string{"preset.example"}, cfg.Domains)
}

func TestResolve_PerOptionPrecedence(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		explicit types.Options
		get      func(*types.ResolvedConfig) string
		want     string
	}{
		{
			name:     types.OptSearchMode,
			explicit: types.Options{SearchMode: types.Some("web")},
			get:      func(c *types.ResolvedConfig) string { return c.SearchMode.OrElse("") },
			want:     "web",
		},
		{
			name:     types.OptSearchType,
			explicit: types.Options{SearchType: types.Some("fast")},
			get:      func(c *types.ResolvedConfig) string { return c.SearchType.OrElse("") },
			want:     "fast",
		},
		{
			name:     types.OptContextSize,
			explicit: types.Options{ContextSize: types.Some("medium")},
			get:      func(c *types.ResolvedConfig) string { return c.ContextSize.OrElse("") },
			want:     "medium",
		},
		{
			name:     types.OptRecencyFilter,
			explicit: types.Options{RecencyFilter: types.Some("month")},
			get:      func(c *types.ResolvedConfig) string { return c.RecencyFilter.OrElse("") },
			want:     "month",
		},
		{
			name:     types.OptDomainFilter,
			explicit: types.Options{Domains: types.Some([]string{"only.example"})},
			get:      func(c *types.ResolvedConfig) string { return fmt.Sprint(c.Domains) },
			want:     "[only.example]",
		},
		{
			name:     types.OptStream,
			explicit: types.Options{Stream: types.Some(true)},
			get:      func(c *types.ResolvedConfig) string { return fmt.Sprint(c.Stream) },
			want:     "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := r.Resolve(query("q"), "everything", types.Shortcuts{Academic: true, Pro: true}, tt.explicit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.get(cfg))
		})
	}
}

func TestResolve_RecencyAndDatesAreExclusive(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		preset   string
		explicit types.Options
	}{
		{
			name:     "preset recency with explicit after date",
			preset:   "everything",
			explicit: types.Options{AfterDate: types.Some("2023-06-01")},
		},
		{
			name:     "preset recency with explicit before date",
			preset:   "everything",
			explicit: types.Options{BeforeDate: types.Some("today")},
		},
		{
			name:     "preset date with explicit recency",
			preset:   "dated",
			explicit: types.Options{RecencyFilter: types.Some("week")},
		},
		{
			name: "both explicit",
			explicit: types.Options{
				RecencyFilter: types.Some("week"),
				AfterDate:     types.Some("2023-06-01"),
			},
		},
		{
			name: "conflict reported before a bad date",
			explicit: types.Options{
				RecencyFilter: types.Some("week"),
				AfterDate:     types.Some("not a date"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := r.Resolve(query("q"), tt.preset, types.Shortcuts{}, tt.explicit)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, apperrors.Is(err, apperrors.ErrConflictingDateFilters), err.Error())
			assert.True(t, apperrors.IsConfigError(apperrors.ExtractCode(err)))
		})
	}
}

func TestResolve_DomainCardinality(t *testing.T) {
	r := newTestResolver(t)
	list := make([]string, 0, filter.MaxDomains+1)
	for i := 0; i <= filter.MaxDomains; i++ {
		list = append(list, fmt.Sprintf("d%d.example", i))
	}

	_, err := r.Resolve(query("q"), "", types.Shortcuts{}, types.Options{Domains: types.Some(list)})
	assert.True(t, apperrors.Is(err, apperrors.ErrTooManyDomains))

	cfg, err := r.Resolve(query("q"), "", types.Shortcuts{}, types.Options{Domains: types.Some(list[:filter.MaxDomains])})
	require.NoError(t, err)
	assert.Len(t, cfg.Domains, filter.MaxDomains)
}

func TestResolve_Errors(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		query    types.SearchQuery
		preset   string
		explicit types.Options
		code     int
	}{
		{"empty query", query("   "), "", types.Options{}, apperrors.ErrInvalidQuery},
		{"unknown preset", query("q"), "nope", types.Options{}, apperrors.ErrUnknownPreset},
		{"bad search mode", query("q"), "", types.Options{SearchMode: types.Some("images")}, apperrors.ErrInvalidOption},
		{"bad recency", query("q"), "", types.Options{RecencyFilter: types.Some("decade")}, apperrors.ErrInvalidOption},
		{"bad date", query("q"), "", types.Options{BeforeDate: types.Some("31/12/2023")}, apperrors.ErrInvalidDateFormat},
		{"inverted range", query("q"), "", types.Options{AfterDate: types.Some("2024-01-02"), BeforeDate: types.Some("2024-01-01")}, apperrors.ErrInvalidDateRange},
		{"bad temperature", types.SearchQuery{Text: "q", Temperature: types.Some(2.5)}, "", types.Options{}, apperrors.ErrInvalidOption},
		{"bad max tokens", types.SearchQuery{Text: "q", MaxTokens: types.Some(0)}, "", types.Options{}, apperrors.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := r.Resolve(tt.query, tt.preset, types.Shortcuts{}, tt.explicit)
			assert.Nil(t, cfg)
			assert.True(t, apperrors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestResolve_NoOptions(t *testing.T) {
	r := newTestResolver(t)

	cfg, err := r.Resolve(query("q"), "", types.Shortcuts{}, types.Options{})
	require.NoError(t, err)
	assert.False(t, cfg.SearchMode.IsSet())
	assert.False(t, cfg.SearchType.IsSet())
	assert.False(t, cfg.RecencyFilter.IsSet())
	assert.True(t, cfg.Dates.IsZero())
	assert.Nil(t, cfg.Domains)
	assert.False(t, cfg.Stream)
}

func TestResolve_AcademicPresetWithExplicitDate(t *testing.T) {
	r := New(preset.Default(), filter.NewDateValidator(nil))

	cfg, err := r.Resolve(query("thermal runaway causes"), "academic", types.Shortcuts{}, types.Options{
		AfterDate: types.Some("2023-06-01"),
	})
	require.NoError(t, err)

	assert.Equal(t, "academic", cfg.SearchMode.OrElse(""))
	after, ok := cfg.Dates.After()
	assert.True(t, ok)
	assert.Equal(t, "06/01/2023", after)

	academic, _ := preset.Default().Lookup("academic")
	domains, _ := academic.Options.Domains.Get()
	assert.Equal(t, domains, cfg.Domains)
}

func TestMerge(t *testing.T) {
	merged := Merge(
		Layer{Name: "a", Options: types.Options{SearchMode: types.Some("web"), ContextSize: types.Some("low")}},
		Layer{Name: "b", Options: types.Options{SearchMode: types.Some("sec")}},
	)
	assert.Equal(t, "sec", merged.SearchMode.OrElse(""))
	assert.Equal(t, "low", merged.ContextSize.OrElse(""))
	assert.False(t, merged.Stream.IsSet())
}
