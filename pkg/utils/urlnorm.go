package utils

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURLKey canonicalizes a page URL for use as a dedup key:
// lowercases scheme and host, strips default ports, trailing slashes,
// fragments and query strings. Unparseable input comes back unchanged so a
// malformed URL still dedups against an identical malformed URL.
func NormalizeURLKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if host, port, splitErr := net.SplitHostPort(u.Host); splitErr == nil {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	u.Fragment = ""
	u.RawQuery = ""
	return u.String()
}
