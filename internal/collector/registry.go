package collector

import (
	"net/url"
	"sort"
	"strings"
)

// Registry remembers collected links in first-seen order. Links are
// compared in canonical form; the first raw spelling is the one kept.
// It is used by a single goroutine and discarded after collection.
type Registry struct {
	seen  map[string]struct{}
	links []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Add records link and reports whether it was new.
func (r *Registry) Add(link string) bool {
	key := CanonicalizeURL(link)
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	r.links = append(r.links, link)
	return true
}

// Has reports whether link was already recorded.
func (r *Registry) Has(link string) bool {
	_, ok := r.seen[CanonicalizeURL(link)]
	return ok
}

// Len returns the number of unique links.
func (r *Registry) Len() int {
	return len(r.links)
}

// Links returns the unique links in first-seen order.
func (r *Registry) Links() []string {
	out := make([]string, len(r.links))
	copy(out, r.links)
	return out
}

// CanonicalizeURL normalizes a URL for deduplication:
// - lowercases scheme and host
// - removes fragment
// - sorts query parameters
// - removes trailing slash (except root)
// - removes default ports (80 for http, 443 for https)
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
