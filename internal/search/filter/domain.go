package filter

import (
	"strings"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
)

const (
	// MaxDomains is the largest domain filter a backend accepts
	MaxDomains = 20

	// ExcludePrefix marks a domain or TLD token as excluded
	ExcludePrefix = "-"
)

// ValidateDomains checks the cardinality and token grammar of a domain
// filter. No network or DNS lookups are made. The returned list has the
// same entries in the same order.
func ValidateDomains(domains []string) ([]string, error) {
	if len(domains) > MaxDomains {
		return nil, apperrors.Newf(apperrors.ErrTooManyDomains,
			"%d domains given, maximum is %d", len(domains), MaxDomains)
	}

	for _, d := range domains {
		if !validDomainToken(d) {
			return nil, apperrors.Newf(apperrors.ErrInvalidDomain, "%q", d)
		}
	}

	out := make([]string, len(domains))
	copy(out, domains)
	return out, nil
}

// IsExcluded reports whether a token denotes an exclusion
func IsExcluded(token string) bool {
	return strings.HasPrefix(token, ExcludePrefix)
}

// validDomainToken accepts "host.tld", ".tld" and either form prefixed with "-"
func validDomainToken(token string) bool {
	host := strings.TrimPrefix(token, ExcludePrefix)
	host = strings.TrimPrefix(host, ".")
	if host == "" || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}

	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '.':
		default:
			return false
		}
	}
	return !strings.Contains(host, "..")
}
