package request

import (
	"fmt"
	"strings"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// DefaultMaxAttachmentBytes caps a single attachment at 20 MiB
const DefaultMaxAttachmentBytes int64 = 20 << 20

// Builder turns a resolved configuration into a backend payload
type Builder struct {
	policy             types.OptionPolicy
	maxAttachmentBytes int64
}

// Option configures a Builder
type Option func(*Builder)

// WithPolicy sets the unsupported-option policy
func WithPolicy(p types.OptionPolicy) Option {
	return func(b *Builder) {
		if p != "" {
			b.policy = p
		}
	}
}

// WithMaxAttachmentBytes sets the per-file size limit
func WithMaxAttachmentBytes(n int64) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxAttachmentBytes = n
		}
	}
}

// NewBuilder creates a builder, strict by default
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		policy:             types.PolicyStrict,
		maxAttachmentBytes: DefaultMaxAttachmentBytes,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the unsupported-option policy in effect
func (b *Builder) Policy() types.OptionPolicy {
	return b.policy
}

// Build emits the payload for backend d
func (b *Builder) Build(cfg *types.ResolvedConfig, q types.SearchQuery, d *backend.Descriptor) (*types.Payload, error) {
	if !d.Ready() {
		return nil, apperrors.New(apperrors.ErrSetupIncomplete).WithBackend(string(d.ID))
	}

	plan := &plan{caps: d.Capabilities, backend: d.ID}
	wr := &types.WireRequest{
		Query:       strings.TrimSpace(q.Text),
		MaxTokens:   q.MaxTokens,
		Temperature: q.Temperature,
	}

	wr.SearchMode = optional(plan, types.CapSearchMode, types.OptSearchMode, cfg.SearchMode)
	wr.SearchType = optional(plan, types.CapSearchType, types.OptSearchType, cfg.SearchType)
	wr.ContextSize = optional(plan, types.CapContextSize, types.OptContextSize, cfg.ContextSize)
	wr.RecencyFilter = optional(plan, types.CapRecencyFilter, types.OptRecencyFilter, cfg.RecencyFilter)

	if !cfg.Dates.IsZero() && plan.allow(types.CapDateFilter, types.OptAfterDate+"/"+types.OptBeforeDate) {
		wr.AfterDate, _ = cfg.Dates.After()
		wr.BeforeDate, _ = cfg.Dates.Before()
	}
	if len(cfg.Domains) > 0 && plan.allow(types.CapDomainFilter, types.OptDomainFilter) {
		wr.Domains = append([]string(nil), cfg.Domains...)
	}

	// Multi-step search is only served as a stream
	wr.Stream = cfg.Stream
	if v, ok := wr.SearchType.Get(); ok && v == types.SearchTypePro && !wr.Stream {
		wr.Stream = true
		plan.notes = append(plan.notes, fmt.Sprintf("%s=%s requires streaming; %s forced on",
			types.OptSearchType, types.SearchTypePro, types.OptStream))
	}
	if wr.Stream && !plan.allow(types.CapStreaming, types.OptStream) {
		wr.Stream = false
	}

	attach := len(q.Files) > 0 && plan.allow(types.CapAttachments, types.OptAttachments)

	if err := plan.err(b.policy); err != nil {
		return nil, err
	}

	if attach {
		atts, err := LoadAttachments(q.Files, b.maxAttachmentBytes)
		if err != nil {
			return nil, err
		}
		wr.Attachments = atts
	}

	body, err := d.Transport.Encode(wr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown).WithBackend(string(d.ID))
	}

	return &types.Payload{
		Backend:  d.ID,
		Stream:   wr.Stream,
		Body:     body,
		Warnings: plan.warnings(b.policy),
	}, nil
}

// plan tracks which requested options the backend cannot honour
type plan struct {
	caps        types.CapabilitySet
	backend     types.BackendID
	unsupported []string
	notes       []string
}

func (p *plan) allow(c types.Capability, name string) bool {
	if p.caps.Supports(c) {
		return true
	}
	p.unsupported = append(p.unsupported, name)
	return false
}

func (p *plan) err(policy types.OptionPolicy) error {
	if len(p.unsupported) == 0 || policy == types.PolicyBestEffort {
		return nil
	}
	return apperrors.Newf(apperrors.ErrUnsupportedOption, "%s does not support %s",
		p.backend, strings.Join(p.unsupported, ", ")).WithBackend(string(p.backend))
}

func (p *plan) warnings(policy types.OptionPolicy) []string {
	out := append([]string(nil), p.notes...)
	if policy == types.PolicyBestEffort {
		for _, name := range p.unsupported {
			out = append(out, fmt.Sprintf("%s does not support %s; option dropped", p.backend, name))
		}
	}
	return out
}

func optional(p *plan, c types.Capability, name string, v types.Opt[string]) types.Opt[string] {
	if !v.IsSet() || p.allow(c, name) {
		return v
	}
	return types.None[string]()
}
