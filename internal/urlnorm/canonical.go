package urlnorm

import (
	"crypto/md5" // #nosec G501 -- fingerprint format is fixed by persisted frontiers, not used for security.
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("empty url")

var parser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// Canonicalize normalises an absolute URL and strips query, fragment and
// parameters. Relative or unparsable input yields an error.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	parsed, err := parser.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	return strip(parsed.Href(true))
}

// Resolve joins href against base and canonicalizes the result.
func Resolve(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	parsed, err := parser.ParseRef(base, href)
	if err != nil {
		return "", fmt.Errorf("resolve %q against %q: %w", href, base, err)
	}
	return strip(parsed.Href(true))
}

func strip(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("reparse url %q: %w", href, err)
	}
	if u.Opaque != "" {
		return u.Scheme + ":" + u.Opaque, nil
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	b.WriteString(stripParams(u.EscapedPath()))
	return b.String(), nil
}

// stripParams drops ";params" from the last path segment.
func stripParams(path string) string {
	last := strings.LastIndexByte(path, '/')
	if i := strings.IndexByte(path[last+1:], ';'); i >= 0 {
		return path[:last+1+i]
	}
	return path
}

// Fingerprint returns the document id for a canonical URL: lowercase hex MD5.
func Fingerprint(canonical string) string {
	sum := md5.Sum([]byte(canonical)) // #nosec G401 -- identifier only.
	return hex.EncodeToString(sum[:])
}

// Host returns the lowercase hostname of a canonical URL, without port.
func Host(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// MainDomain collapses a host with more than one dot to its last two labels,
// so www.tuebingen.de and uni-tuebingen.de group as tuebingen.de and uni-tuebingen.de.
func MainDomain(host string) string {
	if strings.Count(host, ".") <= 1 {
		return host
	}
	labels := strings.Split(host, ".")
	return strings.Join(labels[len(labels)-2:], ".")
}
