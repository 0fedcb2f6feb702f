package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "pages", map[string]string{"doc_id": "a1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "pages-en", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "pages", msgs[0].Topic)
	require.Equal(t, "pages-en", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "pages", pub.Messages()[0].Topic, "Messages must return a copy")
	require.NoError(t, pub.Close())
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("boom")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "pages", "x")
	require.ErrorIs(t, err, boom)
	require.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "pages", "x")
	require.NoError(t, err)
	require.Len(t, pub.Messages(), 1)
}
