package harvest

import "strings"

// DomainBlocklist matches hostnames against exact entries and suffix
// wildcards. Discovery uses it to drop search-engine, aggregator and
// social hosts from candidate sets.
type DomainBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewDomainBlocklist builds a matcher from configured patterns. Entries
// may be exact hosts ("example.com"), wildcards ("*.example.com") or bare
// suffixes (".example.com"). Exact entries also block their subdomains:
// the exclusion list names registrable domains and a candidate on any
// subdomain of one is just as unwanted.
func NewDomainBlocklist(patterns []string) *DomainBlocklist {
	bl := &DomainBlocklist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			bl.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			bl.addSuffix(strings.TrimPrefix(value, "."))
		default:
			bl.exact[value] = struct{}{}
			bl.addSuffix(value)
		}
	}
	return bl
}

func (b *DomainBlocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// IsBlocked reports whether host matches any entry.
func (b *DomainBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
