package domain

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization. They
// vary per visitor and would otherwise split one article into many identities.
var trackingParams = map[string]bool{
	"fbclid":       true,
	"gclid":        true,
	"igshid":       true,
	"mc_cid":       true,
	"mc_eid":       true,
	"ref":          true,
	"ref_src":      true,
	"utm_campaign": true,
	"utm_content":  true,
	"utm_medium":   true,
	"utm_source":   true,
	"utm_term":     true,
}

// NormalizeURL produces the canonical identity key for an item: scheme and
// host lowercased, tracking query parameters removed, fragment dropped, and
// the trailing slash stripped from the path.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", WrapError(ErrMalformedSourceItem, "parse url", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", WrapError(ErrMalformedSourceItem, "normalize url", errNoSchemeOrHost)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	for param := range query {
		if trackingParams[strings.ToLower(param)] {
			query.Del(param)
		}
	}
	parsed.RawQuery = query.Encode()

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String(), nil
}
