package requirement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, doc string) *Record {
	return &Record{ID: id, Document: doc, Anchor: anchorFor(id)}
}

func TestRegistry_DuplicateIdentity(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(rec("REQ-001", "a")))

	err := r.Add(rec("REQ-001", "b"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateIdentity))

	var dup *DuplicateIdentityError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "REQ-001", dup.ID)
	assert.Equal(t, "a", dup.Existing)
	assert.Equal(t, "b", dup.Incoming)

	// same document twice is also a duplicate
	assert.ErrorIs(t, r.Add(rec("REQ-001", "a")), ErrDuplicateIdentity)
}

func TestRegistry_PurgeThenAdd(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(rec("REQ-001", "a")))

	assert.Equal(t, 1, r.Purge("a"))
	require.NoError(t, r.Add(rec("REQ-001", "b")))

	got, ok := r.Lookup("REQ-001")
	require.True(t, ok)
	assert.Equal(t, "b", got.Document)
}

func TestRegistry_PurgeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(rec("1", "a")))
	require.NoError(t, r.Add(rec("2", "b")))
	require.NoError(t, r.Add(rec("3", "a")))

	assert.Equal(t, 2, r.Purge("a"))
	assert.Equal(t, 0, r.Purge("a"))
	assert.Equal(t, 0, r.Purge("missing"))
	require.Len(t, r.All(), 1)
	assert.Equal(t, "2", r.All()[0].ID)
	_, ok := r.Lookup("1")
	assert.False(t, ok)
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Add(rec(id, "d")))
	}
	var ids []string
	for _, x := range r.All() {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_LabelsShareNamespace(t *testing.T) {
	r := NewRegistry()
	a := rec("REQ-001", "a")
	a.Label = "login"
	require.NoError(t, r.Add(a))

	b := rec("login", "b")
	assert.ErrorIs(t, r.Add(b), ErrDuplicateIdentity)

	c := rec("REQ-002", "b")
	c.Label = "REQ-001"
	assert.ErrorIs(t, r.Add(c), ErrDuplicateIdentity)

	assert.True(t, r.Taken("login"))
	assert.True(t, r.Taken("REQ-001"))
	assert.False(t, r.Taken("REQ-002"))
}

func TestRegistry_AddAllIsAtomic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(rec("X", "other")))

	err := r.AddAll([]*Record{rec("A", "d"), rec("B", "d"), rec("X", "d")})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.Equal(t, 1, r.Len())

	err = r.AddAll([]*Record{rec("A", "d"), rec("A", "d")})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.AddAll([]*Record{rec("A", "d"), rec("B", "d")}))
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_LookupTarget(t *testing.T) {
	r := NewRegistry()
	a := rec("REQ-001", "a")
	a.Label = "login"
	require.NoError(t, r.Add(a))

	for _, target := range []string{"REQ-001", "login"} {
		got, ok := r.LookupTarget(target)
		require.True(t, ok, target)
		assert.Same(t, a, got)
		assert.True(t, a.IsTarget(target))
	}
	_, ok := r.LookupTarget("nope")
	assert.False(t, ok)
	assert.False(t, a.IsTarget(""))

	a.DisplayName = "REQ-001 Login"
	_, ok = r.LookupTarget("REQ-001 Login")
	assert.False(t, ok, "display names resolve through Finalize")
	assert.True(t, a.IsTarget("REQ-001 Login"))
}
