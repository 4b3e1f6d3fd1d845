package types

import (
	"sort"
	"strings"
)

type BackendID string

const (
	BackendDirect BackendID = "direct"
	BackendRelay  BackendID = "relay"
)

// Mode is the caller's backend request: auto or one specific backend
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeDirect Mode = Mode(BackendDirect)
	ModeRelay  Mode = Mode(BackendRelay)
)

// ParseMode parses a mode string, empty meaning auto
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, true
	case ModeDirect:
		return ModeDirect, true
	case ModeRelay:
		return ModeRelay, true
	}
	return "", false
}

// Capability is one feature a backend may or may not support
type Capability string

const (
	CapStreaming     Capability = "streaming"
	CapDomainFilter  Capability = "domain_filter"
	CapSearchMode    Capability = "search_mode"
	CapSearchType    Capability = "search_type"
	CapContextSize   Capability = "search_context_size"
	CapRecencyFilter Capability = "recency_filter"
	CapDateFilter    Capability = "date_filter"
	CapAttachments   Capability = "attachments"
)

// CapabilitySet is an immutable set of capabilities
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// NewCapabilitySet creates a set from the given capabilities
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return CapabilitySet{caps: m}
}

// Supports reports whether c is in the set
func (s CapabilitySet) Supports(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// List returns the capabilities in stable order
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OptionPolicy decides what happens to options a backend cannot honour
type OptionPolicy string

const (
	// PolicyStrict fails the request with an unsupported-option error
	PolicyStrict OptionPolicy = "strict"
	// PolicyBestEffort drops the option and records a warning
	PolicyBestEffort OptionPolicy = "best_effort"
)

// ParseOptionPolicy parses a policy string, empty meaning strict
func ParseOptionPolicy(s string) (OptionPolicy, bool) {
	switch OptionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, true
	case PolicyBestEffort, "best-effort":
		return PolicyBestEffort, true
	}
	return "", false
}
