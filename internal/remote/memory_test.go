package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTree_CompareAndSwap(t *testing.T) {
	tree := NewMemoryTree("")
	ctx := context.Background()

	m1, err := tree.Put(ctx, "content/blog/a.md", []byte("v1"), "create", "")
	require.NoError(t, err)

	_, err = tree.Put(ctx, "content/blog/a.md", []byte("again"), "create", "")
	assert.ErrorIs(t, err, ErrConflict)

	m2, err := tree.Put(ctx, "content/blog/a.md", []byte("v2"), "update", m1)
	require.NoError(t, err)
	assert.NotEqual(t, m1, m2)

	_, err = tree.Put(ctx, "content/blog/a.md", []byte("v3"), "stale update", m1)
	assert.ErrorIs(t, err, ErrConflict)

	file, err := tree.Get(ctx, "content/blog/a.md")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(file.Content))

	assert.ErrorIs(t, tree.Delete(ctx, "content/blog/a.md", m1, "stale delete"), ErrConflict)
	require.NoError(t, tree.Delete(ctx, "content/blog/a.md", m2, "delete"))
	assert.ErrorIs(t, tree.Delete(ctx, "content/blog/a.md", m2, "delete"), ErrNotFound)

	assert.Equal(t, []string{"create", "update", "delete"}, tree.Commits())
}

func TestMemoryTree_List(t *testing.T) {
	tree := NewMemoryTree("https://raw.example.com")
	ctx := context.Background()

	_, err := tree.List(ctx, "content/blog")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _ = tree.Put(ctx, "content/blog/b.md", []byte("b"), "b", "")
	_, _ = tree.Put(ctx, "content/blog/a.md", []byte("a"), "a", "")
	_, _ = tree.Put(ctx, "content/blog/drafts/c.md", []byte("c"), "c", "")

	entries, err := tree.List(ctx, "content/blog/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.md", entries[0].Name)
	assert.Equal(t, "https://raw.example.com/content/blog/a.md", entries[0].DownloadURL)
	assert.Equal(t, "drafts", entries[2].Name)
	assert.True(t, entries[2].IsDir)
}

func TestMemoryTree_HonoursCancellation(t *testing.T) {
	tree := NewMemoryTree("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tree.Put(ctx, "a.md", []byte("a"), "a", "")
	assert.ErrorIs(t, err, context.Canceled)
}
