// Package tracking normalizes raw tracking URLs into a comparable landing key
// and a flat query parameter mapping.
package tracking

import (
	"html"
	"net/url"
	"strings"
)

// URL is a parsed tracking URL. The zero value is the empty sentinel.
type URL struct {
	Scheme string
	Host   string
	Path   string
	Query  map[string]string
}

// Parse normalizes raw into a URL. HTML entities are unescaped first so that
// "&amp;"-encoded query strings split correctly. Parse never fails: input that
// cannot be parsed yields the empty sentinel.
func Parse(raw string) URL {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return URL{}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return URL{}
	}

	out := URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
		Query:  parseQuery(u.RawQuery),
	}
	if out.Scheme == "" && out.Host == "" {
		out.Host, out.Path = splitBareHost(out.Path)
	}
	return out
}

// parseQuery flattens a query string, keeping the last non-blank value of
// each key.
func parseQuery(raw string) map[string]string {
	q := make(map[string]string)
	if raw == "" {
		return q
	}
	values, _ := url.ParseQuery(raw)
	for k, vs := range values {
		for i := len(vs) - 1; i >= 0; i-- {
			if vs[i] != "" {
				q[k] = vs[i]
				break
			}
		}
	}
	return q
}

// splitBareHost recovers the host of a scheme-less URL such as
// "example.com/landing". The first segment is treated as a host only when it
// contains a dot.
func splitBareHost(p string) (string, string) {
	first, rest, found := strings.Cut(p, "/")
	if !strings.Contains(first, ".") {
		return "", p
	}
	if !found {
		return first, ""
	}
	return first, "/" + rest
}

// IsEmpty reports whether the URL carries neither host nor path.
func (u URL) IsEmpty() bool {
	return u.Host == "" && u.Path == ""
}

// Key returns host+path, the comparison key used for every lookup.
func (u URL) Key() string {
	return u.Host + u.Path
}

// Landing returns scheme://host+path, or Key when no scheme is known.
func (u URL) Landing() string {
	if u.Scheme == "" {
		return u.Key()
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Param returns the query value for name, or "" when absent.
func (u URL) Param(name string) string {
	if u.Query == nil {
		return ""
	}
	return u.Query[name]
}

// Key is a shorthand for Parse(raw).Key().
func Key(raw string) string {
	return Parse(raw).Key()
}

// IsHTTP reports whether raw starts with an http(s) scheme.
func IsHTTP(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "http")
}
