package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "html/a1.html", "text/html", strings.NewReader("content"))
	require.NoError(t, err)
	require.Equal(t, "memory://html/a1.html", uri)
	require.Equal(t, 1, store.Len())

	got, ok := store.Get("html/a1.html")
	require.True(t, ok)
	got[0] = 'C'
	again, _ := store.Get("html/a1.html")
	require.Equal(t, "content", string(again))

	_, ok = store.Get("missing")
	require.False(t, ok)
}

func TestBlobStorePutObjectReadError(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "p", "", iotest.ErrReader(errors.New("boom")))
	require.ErrorContains(t, err, "boom")
	require.Zero(t, store.Len())
}
