package urlutil

import (
	"net/url"
	"strings"
)

// ExtractHost extracts and lowercases the host (with port, if any) from a URL
// string. Returns empty string if the URL is invalid or has no host.
func ExtractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// ExtractHostname strips the port from a host string. Input is a host (NOT a
// full URL), e.g. "blog.example.com:8080". Bracketed IPv6 literals keep their
// brackets; bare IPv6 addresses are returned unchanged.
func ExtractHostname(host string) string {
	if strings.HasPrefix(host, "[") {
		if bracketIdx := strings.Index(host, "]"); bracketIdx != -1 {
			return host[:bracketIdx+1]
		}
		return host
	}
	// A single colon means host:port. More than one is a bare IPv6 literal.
	if idx := strings.LastIndex(host, ":"); idx != -1 && strings.Count(host, ":") == 1 {
		return host[:idx]
	}
	return host
}
