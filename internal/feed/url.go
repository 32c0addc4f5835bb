package feed

import (
	"net/url"
	"strings"
)

// NormalizeURL makes sure a submitted link carries a scheme: anything not
// starting with http:// or https:// is prefixed with https://. Nothing
// else is checked, so "//host/path" becomes "https:////host/path".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	default:
		return "https://" + raw
	}
}

// Domain returns the host of a link without a leading "www.", or "" when
// the link has no usable host. The scheme is matched case-insensitively
// and extra slashes after it are skipped, as browsers do.
func Domain(raw string) string {
	link := strings.TrimSpace(raw)
	if link == "" {
		return ""
	}
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		link = NormalizeURL(link)
	}
	scheme, rest, _ := strings.Cut(link, "://")
	u, err := url.Parse(scheme + "://" + strings.TrimLeft(rest, "/"))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
