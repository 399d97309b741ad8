package attribution

import (
	"github.com/sells-group/leadops-cli/internal/tracking"
)

// organicSources are utm_source values that never count as paid traffic,
// even on a paid landing page.
var organicSources = map[string]bool{
	"webinar":    true,
	"web":        true,
	"email":      true,
	"bot":        true,
	"smm":        true,
	"online":     true,
	"reality":    true,
	"minilesson": true,
	"mail":       true,
}

// IsOrganicSource reports whether a utm_source is on the organic denylist.
func IsOrganicSource(source string) bool {
	return organicSources[source]
}

// PaidSet is the set of paid landing keys (host+path).
type PaidSet map[string]bool

// NewPaidSet normalizes urls into a PaidSet.
func NewPaidSet(urls []string) PaidSet {
	ps := make(PaidSet, len(urls))
	for _, u := range urls {
		if k := tracking.Key(u); k != "" {
			ps[k] = true
		}
	}
	return ps
}

// Contains reports whether the URL's landing key is a paid page.
func (ps PaidSet) Contains(u tracking.URL) bool {
	return ps[u.Key()]
}

// IsPaid applies the two-part paid traffic test: the landing page is paid
// and utm_source is present and not organic.
func (ps PaidSet) IsPaid(u tracking.URL) bool {
	if !ps.Contains(u) {
		return false
	}
	src := u.Param(ParamUTMSource)
	return src != "" && !IsOrganicSource(src)
}
