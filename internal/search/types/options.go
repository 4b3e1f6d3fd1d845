package types

import (
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/filter"
)

// Option names as they appear on the wire and in error messages
const (
	OptSearchMode    = "search_mode"
	OptSearchType    = "search_type"
	OptContextSize   = "search_context_size"
	OptRecencyFilter = "search_recency_filter"
	OptAfterDate     = "search_after_date"
	OptBeforeDate    = "search_before_date"
	OptDomainFilter  = "search_domain_filter"
	OptStream        = "stream"
	OptAttachments   = "attachments"
)

// Accepted option values
var (
	SearchModes    = []string{"web", "academic", "sec"}
	SearchTypes    = []string{"fast", "pro", "auto"}
	ContextSizes   = []string{"low", "medium", "high"}
	RecencyFilters = []string{"hour", "day", "week", "month", "year"}
)

const (
	SearchModeAcademic = "academic"
	SearchTypePro      = "pro"
)

// Options is one layer of partially specified search options. The same
// shape is used for preset values and explicit caller overrides.
type Options struct {
	SearchMode    Opt[string]   `json:"search_mode" yaml:"search_mode"`
	SearchType    Opt[string]   `json:"search_type" yaml:"search_type"`
	ContextSize   Opt[string]   `json:"search_context_size" yaml:"search_context_size"`
	RecencyFilter Opt[string]   `json:"search_recency_filter" yaml:"search_recency_filter"`
	AfterDate     Opt[string]   `json:"search_after_date" yaml:"search_after_date"`
	BeforeDate    Opt[string]   `json:"search_before_date" yaml:"search_before_date"`
	Domains       Opt[[]string] `json:"search_domain_filter" yaml:"search_domain_filter"`
	Stream        Opt[bool]     `json:"stream" yaml:"stream"`
}

// Overlay returns a copy of o with every option set in top replacing o's value
func (o Options) Overlay(top Options) Options {
	return Options{
		SearchMode:    top.SearchMode.Or(o.SearchMode),
		SearchType:    top.SearchType.Or(o.SearchType),
		ContextSize:   top.ContextSize.Or(o.ContextSize),
		RecencyFilter: top.RecencyFilter.Or(o.RecencyFilter),
		AfterDate:     top.AfterDate.Or(o.AfterDate),
		BeforeDate:    top.BeforeDate.Or(o.BeforeDate),
		Domains:       top.Domains.Or(o.Domains),
		Stream:        top.Stream.Or(o.Stream),
	}
}

// Shortcuts are boolean convenience flags expanding to option values
type Shortcuts struct {
	Academic bool `json:"academic"` // search_mode=academic
	Pro      bool `json:"pro"`      // search_type=pro
}

// Options expands the shortcuts into an option layer
func (s Shortcuts) Options() Options {
	var o Options
	if s.Academic {
		o.SearchMode = Some(SearchModeAcademic)
	}
	if s.Pro {
		o.SearchType = Some(SearchTypePro)
	}
	return o
}

// PresetDefinition is a named bundle of default option values
type PresetDefinition struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Options     Options `json:"options" yaml:"options"`
}

// ResolvedConfig is the validated result of merging preset, shortcuts and
// explicit overrides. It is produced only by the resolver.
type ResolvedConfig struct {
	Preset        string           `json:"preset,omitempty"`
	SearchMode    Opt[string]      `json:"search_mode"`
	SearchType    Opt[string]      `json:"search_type"`
	ContextSize   Opt[string]      `json:"search_context_size"`
	RecencyFilter Opt[string]      `json:"search_recency_filter"`
	Dates         filter.DateRange `json:"dates"`
	Domains       []string         `json:"search_domain_filter,omitempty"`
	Stream        bool             `json:"stream"`
}

// IsPro reports whether the multi-step search type was requested
func (c *ResolvedConfig) IsPro() bool {
	v, ok := c.SearchType.Get()
	return ok && v == SearchTypePro
}
