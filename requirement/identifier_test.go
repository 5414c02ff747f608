package requirement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_Format(t *testing.T) {
	vars := map[string]string{"prefix": "SYS", "docid": "007", "doc": "specs/core"}

	tests := []struct {
		pattern string
		n       int
		want    string
	}{
		{"REQ-{:04d}", 1, "REQ-0001"},
		{"REQ-{:04d}", 2, "REQ-0002"},
		{"REQ-{:04d}", 11, "REQ-0011"},
		{"REQ-{:04d}", 12345, "REQ-12345"},
		{"{prefix}-{docid}-{n:03d}", 4, "SYS-007-004"},
		{"{doc}#{n}", 9, "specs/core#9"},
		{"{{{prefix}}}-{n}", 3, "{SYS}-3"},
		{"R{n:4d}", 7, "R   7"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := ParsePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Format(tt.n, vars))
			assert.Equal(t, tt.pattern, p.String())
		})
	}
}

func TestParsePattern_Invalid(t *testing.T) {
	for _, src := range []string{
		"REQ",
		"REQ-{prefix}",
		"REQ-{n",
		"REQ-n}",
		"REQ-{bogus}",
		"REQ-{prefix:03d}-{n}",
		"REQ-{n:03x}",
		"REQ-{n:ad}",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParsePattern(src)
			assert.Error(t, err)
		})
	}
}

func TestPattern_MissingVarsRenderEmpty(t *testing.T) {
	p := MustParsePattern("{prefix}-{docid}-{n:03d}")
	assert.Equal(t, "--001", p.Format(1, nil))
	assert.True(t, Pattern{}.IsZero())
	assert.False(t, p.IsZero())
}

func TestAllocator_DistinctUnderConcurrency(t *testing.T) {
	a := NewAllocator()
	const n = 200

	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- a.Allocate("scope")
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for v := range results {
		assert.False(t, seen[v], "value %d allocated twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i])
	}
}

func TestAllocator_ScopesAndReset(t *testing.T) {
	a := NewAllocator()
	assert.Equal(t, 1, a.Allocate("doc\x00a\x00REQ"))
	assert.Equal(t, 2, a.Allocate("doc\x00a\x00REQ"))
	assert.Equal(t, 1, a.Allocate("doc\x00b\x00REQ"))
	assert.Equal(t, 1, a.Allocate("global"))

	a.Reset(documentScopePrefix("a"))
	assert.Equal(t, 1, a.Allocate("doc\x00a\x00REQ"))
	assert.Equal(t, 2, a.Allocate("doc\x00b\x00REQ"))
	assert.Equal(t, 2, a.Allocate("global"))
}

func TestScope_Key(t *testing.T) {
	assert.Equal(t, "global", ScopeGlobal.key("a", "REQ"))
	assert.Equal(t, ScopePrefix.key("a", "REQ"), ScopePrefix.key("b", "REQ"))
	assert.NotEqual(t, ScopeDocument.key("a", "REQ"), ScopeDocument.key("b", "REQ"))
	assert.NotEqual(t, ScopeDocument.key("a", "REQ"), ScopeDocument.key("a", "SYS"))
	assert.True(t, ScopeDocument.Valid())
	assert.False(t, Scope("bogus").Valid())
}
