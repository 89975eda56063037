// Package urlutil builds the absolute URLs the API hands back to clients:
// Location headers, public object URLs and the link pattern notes accept.
package urlutil

import (
	"net/http"
	"regexp"
	"strings"
)

// WebURLPattern matches the links a note may carry: absolute http(s) URLs
// with a dotted host.
var WebURLPattern = regexp.MustCompile(`^https?://.+\..+`)

// OriginFromRequest returns scheme://host for r. Reverse proxy headers
// (X-Forwarded-Proto, X-Forwarded-Host) win over the connection. fallback is
// returned when no host can be resolved.
func OriginFromRequest(r *http.Request, fallback string) string {
	if r == nil {
		return trimBase(fallback)
	}

	host := firstHop(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = strings.TrimSpace(r.Host)
	}
	if host == "" {
		return trimBase(fallback)
	}
	return requestScheme(r) + "://" + host
}

// BuildAbsolute joins base and path with exactly one slash. An already
// absolute path is returned unchanged.
func BuildAbsolute(base, path string) string {
	base = trimBase(base)
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	case base == "":
		return path
	default:
		return base + "/" + strings.TrimLeft(path, "/")
	}
}

func requestScheme(r *http.Request) string {
	switch proto := strings.ToLower(firstHop(r.Header.Get("X-Forwarded-Proto"))); proto {
	case "http", "https":
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// firstHop returns the first entry of a comma separated proxy header.
func firstHop(v string) string {
	if comma := strings.IndexByte(v, ','); comma >= 0 {
		v = v[:comma]
	}
	return strings.TrimSpace(v)
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
