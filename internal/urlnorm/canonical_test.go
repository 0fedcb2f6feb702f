package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and drops default port", "HTTPS://Www.Example.com:443/a/./b/../c?q=1#frag", "https://www.example.com/a/c"},
		{"empty path becomes root", "http://example.com", "http://example.com/"},
		{"keeps non-default port", "http://example.com:8080/x", "http://example.com:8080/x"},
		{"strips path parameters", "https://example.com/page;jsessionid=abc?x=1", "https://example.com/page"},
		{"keeps percent escapes", "https://en.wikipedia.org/wiki/T%C3%BCbingen", "https://en.wikipedia.org/wiki/T%C3%BCbingen"},
		{"trims whitespace", "  https://www.tuebingen.de/en/  ", "https://www.tuebingen.de/en/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestCanonicalizeIdempotent verifies canonicalizing twice is a no-op.
func TestCanonicalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTPS://Www.Example.com:443/a/./b/../c?q=1#frag",
		"https://uni-tuebingen.de/en/forschung;v=1",
		"https://en.wikipedia.org/wiki/T%C3%BCbingen",
		"http://example.com",
		"https://example.com/a b/ü",
	}
	for _, in := range inputs {
		once, err := Canonicalize(in)
		require.NoError(t, err, in)
		twice, err := Canonicalize(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice)
		assert.Equal(t, Fingerprint(once), Fingerprint(twice))
	}
}

func TestCanonicalizeRejectsRelativeAndEmpty(t *testing.T) {
	t.Parallel()

	_, err := Canonicalize("")
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Canonicalize("/relative/path")
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base := "https://www.tuebingen.de/en/"
	tests := []struct {
		href string
		want string
	}{
		{"../de/stadt?x=1#y", "https://www.tuebingen.de/de/stadt"},
		{"//cdn.example.org/x", "https://cdn.example.org/x"},
		{"visit.html", "https://www.tuebingen.de/en/visit.html"},
		{"https://uni-tuebingen.de", "https://uni-tuebingen.de/"},
		{"#top", "https://www.tuebingen.de/en/"},
	}
	for _, tt := range tests {
		got, err := Resolve(base, tt.href)
		require.NoError(t, err, tt.href)
		assert.Equal(t, tt.want, got, tt.href)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "8d542b0f2ff426670aa440eacd257524", Fingerprint("https://www.example.com/a/c"))
	assert.Equal(t, "b2cdb821412629600c2dd436ee359c31", Fingerprint("https://en.wikipedia.org/wiki/T%C3%BCbingen"))
}

func TestHostAndMainDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "www.tuebingen.de", Host("https://www.tuebingen.de:8443/en/"))
	assert.Equal(t, "", Host("::"))

	tests := map[string]string{
		"www.tuebingen.de":       "tuebingen.de",
		"uni-tuebingen.de":       "uni-tuebingen.de",
		"a.b.c.example.co":       "example.co",
		"localhost":              "localhost",
		"en.wikipedia.org":       "wikipedia.org",
		"tuebingen-info.example": "tuebingen-info.example",
	}
	for host, want := range tests {
		assert.Equal(t, want, MainDomain(host), host)
	}
}
