// Package domain extracts the organisation-identifying label from a URL's
// hostname so it can be compared against a company name.
package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Strategy selects how the organisation label is picked out of a hostname.
type Strategy string

const (
	// StrategyNaive takes the second-to-last dot-separated label when there
	// are more than two, otherwise the first. Wrong for multi-label public
	// suffixes such as .co.uk.
	StrategyNaive Strategy = "naive"
	// StrategyPublicSuffix uses the public suffix list to find the
	// registrable domain and returns its leftmost label.
	StrategyPublicSuffix Strategy = "publicsuffix"
)

// Label extracts the normalized label from rawURL using the strategy.
// Unknown strategies behave like StrategyNaive.
func (s Strategy) Label(rawURL string) string {
	if s == StrategyPublicSuffix {
		return RegistrableLabel(rawURL)
	}
	return SecondLevelLabel(rawURL)
}

// SecondLevelLabel returns the normalized second-level label of rawURL.
// Schemeless input like "acmewidgets.co.uk" is tolerated by falling back to
// the path. It never fails: malformed input yields an empty or meaningless
// label, which simply scores low against any company name.
func SecondLevelLabel(rawURL string) string {
	parts := strings.Split(hostOf(rawURL), ".")
	label := parts[0]
	if len(parts) > 2 {
		label = parts[len(parts)-2]
	}
	return Normalize(label)
}

// RegistrableLabel returns the normalized leftmost label of the registrable
// domain (eTLD+1) of rawURL. Falls back to SecondLevelLabel when the host
// has no registrable part, e.g. it is itself a public suffix.
func RegistrableLabel(rawURL string) string {
	host := strings.ToLower(strings.TrimSuffix(hostOf(rawURL), "."))
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return SecondLevelLabel(rawURL)
	}
	label, _, _ := strings.Cut(registrable, ".")
	return Normalize(label)
}

// Normalize drops every character that is not an ASCII letter or digit and
// lowercases the rest.
// Example: "Affirm, Inc." -> "affirminc"
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			sb.WriteByte(c + ('a' - 'A'))
		}
	}
	return sb.String()
}

// hostOf returns the host of rawURL without port or credentials, or the
// path when the URL has no network location.
func hostOf(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(raw)
	if err != nil {
		return looseHost(raw)
	}
	if parsed.Host != "" {
		return parsed.Hostname()
	}
	return parsed.Path
}

// looseHost picks the network location out of a URL that net/url rejects,
// e.g. one with a space in the host: the text after "://" up to the first
// "/", "?" or "#", without credentials or port.
func looseHost(raw string) string {
	if _, rest, ok := strings.Cut(raw, "://"); ok {
		raw = rest
	}
	if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.LastIndexByte(raw, '@'); i >= 0 {
		raw = raw[i+1:]
	}
	if i := strings.LastIndexByte(raw, ':'); i >= 0 && isDigits(raw[i+1:]) {
		raw = raw[:i]
	}
	return raw
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
