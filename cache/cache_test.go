package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semreq/markup"
)

func openInMemory(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleUnit() *markup.Unit {
	return &markup.Unit{
		Document: "specs/api",
		Title:    "API",
		Nodes: []markup.Node{
			{Kind: markup.KindHeading, Line: 1, Level: 1, Text: "API"},
			{Kind: markup.KindRequirement, Line: 3, Directive: &markup.Directive{
				Name:    markup.DirectiveRequirement,
				Options: map[string]string{"id": "REQ-1"},
				Content: []markup.Block{{Kind: markup.BlockParagraph, Inlines: []markup.Inline{markup.Text("Body"), markup.Ref("REQ-2", "")}}},
				Line:    3,
			}},
		},
	}
}

func TestCache_PutGet(t *testing.T) {
	c := openInMemory(t)

	_, ok, err := c.Get("specs/api", "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put("specs/api", "h1", sampleUnit()))

	got, ok, err := c.Get("specs/api", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleUnit(), got)

	_, ok, err = c.Get("specs/api", "h2")
	require.NoError(t, err)
	assert.False(t, ok, "stale hash must miss")
}

func TestCache_Prune(t *testing.T) {
	c := openInMemory(t)
	for _, doc := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(doc, "h", &markup.Unit{Document: doc}))
	}

	docs, err := c.Documents()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, docs)

	n, err := c.Prune(map[string]bool{"b": true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err = c.Documents()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, docs)
}

func TestCache_Persistent(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, c.Put("index", "h", sampleUnit()))
	require.NoError(t, c.Close())

	c, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer c.Close()
	_, ok, err := c.Get("index", "h")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
