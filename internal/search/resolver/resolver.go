package resolver

import (
	"slices"
	"strings"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/filter"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/preset"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Layer is one named source of partial options
type Layer struct {
	Name    string
	Options types.Options
}

// Resolver merges presets, shortcuts and explicit overrides into a
// validated configuration
type Resolver struct {
	presets *preset.Table
	dates   *filter.DateValidator
}

// New creates a resolver. Nil arguments fall back to the built-in preset
// table and a wall-clock date validator.
func New(presets *preset.Table, dates *filter.DateValidator) *Resolver {
	if presets == nil {
		presets = preset.Default()
	}
	if dates == nil {
		dates = filter.NewDateValidator(nil)
	}
	return &Resolver{presets: presets, dates: dates}
}

// Resolve produces the final configuration for a query. Layers apply in
// the order preset, shortcuts, explicit; validation runs once on the
// merged result so conflicts across layers are caught.
func (r *Resolver) Resolve(query types.SearchQuery, presetName string, sc types.Shortcuts, explicit types.Options) (*types.ResolvedConfig, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	layers, err := r.Layers(presetName, sc, explicit)
	if err != nil {
		return nil, err
	}

	merged := Merge(layers...)
	return r.freeze(strings.ToLower(strings.TrimSpace(presetName)), merged)
}

// Layers returns the option layers in ascending precedence
func (r *Resolver) Layers(presetName string, sc types.Shortcuts, explicit types.Options) ([]Layer, error) {
	layers := make([]Layer, 0, 3)

	if strings.TrimSpace(presetName) != "" {
		p, ok := r.presets.Lookup(presetName)
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrUnknownPreset,
				"%q (available: %s)", presetName, strings.Join(r.presets.Names(), ", "))
		}
		layers = append(layers, Layer{Name: "preset:" + p.Name, Options: p.Options})
	}

	layers = append(layers,
		Layer{Name: "shortcuts", Options: sc.Options()},
		Layer{Name: "explicit", Options: explicit},
	)
	return layers, nil
}

// Merge folds layers into one option set, later layers winning
func Merge(layers ...Layer) types.Options {
	var merged types.Options
	for _, l := range layers {
		merged = merged.Overlay(l.Options)
	}
	return merged
}

func (r *Resolver) freeze(presetName string, o types.Options) (*types.ResolvedConfig, error) {
	if err := checkExclusive(o); err != nil {
		return nil, err
	}

	if err := checkEnum(types.OptSearchMode, o.SearchMode, types.SearchModes); err != nil {
		return nil, err
	}
	if err := checkEnum(types.OptSearchType, o.SearchType, types.SearchTypes); err != nil {
		return nil, err
	}
	if err := checkEnum(types.OptContextSize, o.ContextSize, types.ContextSizes); err != nil {
		return nil, err
	}
	if err := checkEnum(types.OptRecencyFilter, o.RecencyFilter, types.RecencyFilters); err != nil {
		return nil, err
	}

	dates, err := r.dates.Range(o.AfterDate.OrElse(""), o.BeforeDate.OrElse(""))
	if err != nil {
		return nil, err
	}

	var domains []string
	if d, ok := o.Domains.Get(); ok {
		if domains, err = filter.ValidateDomains(d); err != nil {
			return nil, err
		}
	}

	return &types.ResolvedConfig{
		Preset:        presetName,
		SearchMode:    normalized(o.SearchMode),
		SearchType:    normalized(o.SearchType),
		ContextSize:   normalized(o.ContextSize),
		RecencyFilter: normalized(o.RecencyFilter),
		Dates:         dates,
		Domains:       domains,
		Stream:        o.Stream.OrElse(false),
	}, nil
}

// checkExclusive rejects a recency window combined with explicit date bounds
func checkExclusive(o types.Options) error {
	recency, hasRecency := o.RecencyFilter.Get()
	if !hasRecency {
		return nil
	}
	if o.AfterDate.IsSet() || o.BeforeDate.IsSet() {
		return apperrors.Newf(apperrors.ErrConflictingDateFilters,
			"%s=%q cannot be combined with %s/%s", types.OptRecencyFilter, recency, types.OptAfterDate, types.OptBeforeDate)
	}
	return nil
}

func checkEnum(name string, o types.Opt[string], allowed []string) error {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	if !slices.Contains(allowed, strings.ToLower(strings.TrimSpace(v))) {
		return apperrors.Newf(apperrors.ErrInvalidOption,
			"%s=%q (allowed: %s)", name, v, strings.Join(allowed, ", "))
	}
	return nil
}

func normalized(o types.Opt[string]) types.Opt[string] {
	if v, ok := o.Get(); ok {
		return types.Some(strings.ToLower(strings.TrimSpace(v)))
	}
	return o
}
