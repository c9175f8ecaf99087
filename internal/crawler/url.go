package crawler

import (
	"fmt"
	"strings"
)

// URLComponents is the scheme/host/path decomposition of a URL.
type URLComponents struct {
	Scheme string
	Host   string
	Path   string
}

// ParseURL splits raw into scheme, host and path. The scheme defaults to
// "http" and the path to "/". The host ends at the first '/', '?' or '#'.
func ParseURL(raw string) (URLComponents, error) {
	raw = strings.TrimSpace(raw)
	scheme := "http"
	rest := raw
	if idx := strings.Index(raw, "://"); idx >= 0 {
		scheme = raw[:idx]
		rest = raw[idx+3:]
		if !isScheme(scheme) {
			return URLComponents{}, fmt.Errorf("%w: bad scheme in %q", ErrMalformedURL, raw)
		}
	}

	host := rest
	path := "/"
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		host = rest[:end]
		path = rest[end:]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	if host == "" {
		return URLComponents{}, fmt.Errorf("%w: missing host in %q", ErrMalformedURL, raw)
	}
	return URLComponents{Scheme: strings.ToLower(scheme), Host: host, Path: path}, nil
}

// Resolve turns href, found on the page at base, into an absolute URL.
//
// Absolute hrefs are returned unchanged, protocol-relative hrefs take the
// base scheme, host-relative hrefs take the base scheme and host, and
// everything else is joined to the base directory with "." and ".." segments
// folded away.
func Resolve(base, href string) (string, error) {
	b, err := ParseURL(base)
	if err != nil {
		return "", err
	}
	href = strings.TrimSpace(href)

	switch {
	case hasScheme(href):
		return href, nil
	case strings.HasPrefix(href, "//"):
		return b.Scheme + ":" + href, nil
	case strings.HasPrefix(href, "/"):
		return b.Scheme + "://" + b.Host + href, nil
	}

	refPath, suffix := splitSuffix(href)
	basePath, _ := splitSuffix(b.Path)
	dir := basePath[:strings.LastIndex(basePath, "/")+1]
	if refPath == "" {
		// Query- or fragment-only reference: keep the base document.
		return b.Scheme + "://" + b.Host + basePath + suffix, nil
	}
	return b.Scheme + "://" + b.Host + normalizePath(dir+refPath) + suffix, nil
}

// normalizePath folds "." and ".." segments and collapses empty ones. A
// trailing slash on the input is kept.
func normalizePath(p string) string {
	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, seg)
		}
	}
	out := "/" + strings.Join(segments, "/")
	if strings.HasSuffix(p, "/") && len(segments) > 0 {
		out += "/"
	}
	return out
}

// splitSuffix separates the path part of a reference from its query and
// fragment.
func splitSuffix(ref string) (string, string) {
	if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		return ref[:idx], ref[idx:]
	}
	return ref, ""
}

// hasScheme reports whether s starts with "scheme://".
func hasScheme(s string) bool {
	idx := strings.Index(s, "://")
	return idx > 0 && isScheme(s[:idx])
}

func isScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
