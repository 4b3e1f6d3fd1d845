package backend

import (
	"strings"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Selector picks the backend for a dispatch
type Selector struct {
	table *Table
}

// NewSelector creates a selector over a descriptor table
func NewSelector(table *Table) *Selector {
	return &Selector{table: table}
}

// Select returns the single backend that should serve mode
func (s *Selector) Select(mode types.Mode, creds CredentialSource) (*Descriptor, error) {
	candidates, err := s.Candidates(mode, creds)
	if err != nil {
		return nil, err
	}
	return candidates[0], nil
}

// Candidates returns the usable backends for mode in preference order.
// Auto mode yields every backend with a credential and a client; an
// explicit mode yields exactly the requested backend or fails, never a
// substitute.
func (s *Selector) Candidates(mode types.Mode, creds CredentialSource) ([]*Descriptor, error) {
	if creds == nil {
		creds = Credentials{}
	}
	if mode == "" || mode == types.ModeAuto {
		return s.auto(creds)
	}

	d, ok := s.table.Get(types.BackendID(mode))
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownMode, "%q", mode)
	}
	if _, ok := creds.Lookup(d.CredentialKey); !ok {
		return nil, apperrors.Newf(apperrors.ErrCredentialMissing, "%s is not set", d.CredentialKey).
			WithBackend(string(d.ID))
	}
	if !d.Ready() {
		return nil, apperrors.Newf(apperrors.ErrSetupIncomplete, "no client configured for %s", d.ID).
			WithBackend(string(d.ID))
	}
	return []*Descriptor{d}, nil
}

func (s *Selector) auto(creds CredentialSource) ([]*Descriptor, error) {
	var (
		out       []*Descriptor
		keys      []string
		noClients []string
	)
	for _, d := range s.table.All() {
		if _, ok := creds.Lookup(d.CredentialKey); !ok {
			keys = append(keys, d.CredentialKey)
			continue
		}
		if !d.Ready() {
			noClients = append(noClients, string(d.ID))
			continue
		}
		out = append(out, d)
	}

	if len(out) > 0 {
		return out, nil
	}
	if len(noClients) > 0 {
		return nil, apperrors.Newf(apperrors.ErrSetupIncomplete,
			"credentials present but no client for %s", strings.Join(noClients, ", "))
	}
	return nil, apperrors.Newf(apperrors.ErrCredentialMissing, "set one of %s", strings.Join(keys, ", "))
}
