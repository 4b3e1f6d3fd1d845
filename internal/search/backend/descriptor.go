package backend

import (
	"fmt"
	"os"
	"strings"

	"github.com/lk2023060901/ai-search-dispatcher/internal/search/transport"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Descriptor is the static description of one backend. Descriptors are
// built once at startup and never mutated.
type Descriptor struct {
	ID            types.BackendID
	Name          string
	CredentialKey string
	Capabilities  types.CapabilitySet

	// Transport is nil when the backend client could not be set up
	Transport transport.Transport
}

// NewDescriptor describes a backend served by tr. A nil tr leaves the
// backend selectable only as a setup error.
func NewDescriptor(id types.BackendID, name, credentialKey string, tr transport.Transport) *Descriptor {
	d := &Descriptor{ID: id, Name: name, CredentialKey: credentialKey, Transport: tr}
	if tr != nil {
		d.Capabilities = tr.Capabilities()
	}
	return d
}

// Ready reports whether the backend has a client to execute with
func (d *Descriptor) Ready() bool {
	return d != nil && d.Transport != nil
}

// CredentialSource answers whether a named secret is available
type CredentialSource interface {
	Lookup(key string) (string, bool)
}

// Credentials is a static CredentialSource
type Credentials map[string]string

// Lookup returns the secret for key when it is non-blank
func (c Credentials) Lookup(key string) (string, bool) {
	return usable(c[key])
}

// EnvCredentials reads secrets from the process environment
type EnvCredentials struct{}

// Lookup returns the environment value for key when it is non-blank
func (EnvCredentials) Lookup(key string) (string, bool) {
	v, _ := os.LookupEnv(key)
	return usable(v)
}

func usable(v string) (string, bool) {
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Table is the process-wide set of backend descriptors
type Table struct {
	byID  map[types.BackendID]*Descriptor
	order []types.BackendID
}

// NewTable builds a descriptor table. Order is the auto-mode preference.
func NewTable(descriptors ...*Descriptor) (*Table, error) {
	t := &Table{byID: make(map[types.BackendID]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d == nil || d.ID == "" {
			return nil, fmt.Errorf("backend descriptor without an id")
		}
		if _, dup := t.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate backend %q", d.ID)
		}
		if d.CredentialKey == "" {
			return nil, fmt.Errorf("backend %q has no credential key", d.ID)
		}
		t.byID[d.ID] = d
		t.order = append(t.order, d.ID)
	}
	return t, nil
}

// Get returns the descriptor for id
func (t *Table) Get(id types.BackendID) (*Descriptor, bool) {
	d, ok := t.byID[id]
	return d, ok
}

// All returns the descriptors in preference order
func (t *Table) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}
