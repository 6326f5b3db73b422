package urlutil

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that vary per campaign without changing
// the resource they point at. Dropped when normalizing links for dedup.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref_src": true,
	"ref_url": true,
}

// NormalizeLink canonicalizes an item link for dedup-key derivation:
// tracking query parameters are removed, the fragment and any trailing slash
// are stripped, and the result is lower-cased.
func NormalizeLink(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return strings.ToLower(strings.TrimSuffix(trimmed, "/"))
	}

	query := parsed.Query()
	for key := range query {
		if trackingParams[key] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""

	normalized := strings.TrimSuffix(parsed.String(), "/")
	return strings.ToLower(normalized)
}
