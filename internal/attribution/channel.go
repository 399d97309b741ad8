// Package attribution assigns channel and category labels to tracking URLs
// using injected reference tables.
package attribution

import (
	"strings"

	"github.com/sells-group/leadops-cli/internal/model"
)

// Tracking parameter names, in precedence order.
const (
	ParamRoistat   = "roistat"
	ParamRS        = "rs"
	ParamUTMSource = "utm_source"
)

// ChannelFromQuery derives the channel identifier from query parameters.
// roistat and rs contribute the segment before the first underscore and are
// skipped when that segment is empty; utm_source is taken verbatim.
func ChannelFromQuery(q map[string]string) string {
	if ch := firstSegment(q[ParamRoistat]); ch != "" {
		return ch
	}
	if ch := firstSegment(q[ParamRS]); ch != "" {
		return ch
	}
	if src := q[ParamUTMSource]; src != "" {
		return src
	}
	return model.UndefinedLabel
}

// Markers returns the distinct first segments of roistat, rs and utm_source
// in that order. They are the candidate channel keys of a payment.
func Markers(q map[string]string) []string {
	var out []string
	seen := make(map[string]bool, 3)
	for _, name := range []string{ParamRoistat, ParamRS, ParamUTMSource} {
		seg := firstSegment(q[name])
		if seg == "" || seen[seg] {
			continue
		}
		seen[seg] = true
		out = append(out, seg)
	}
	return out
}

func firstSegment(v string) string {
	seg, _, _ := strings.Cut(v, "_")
	return seg
}
