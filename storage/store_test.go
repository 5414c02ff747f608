package storage

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semreq/requirement"
)

// fakeEntry overrides Value; the embedded interface covers the rest.
type fakeEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

type fakeBucket struct {
	data map[string][]byte
}

func newFakeBucket() *fakeBucket { return &fakeBucket{data: make(map[string][]byte)} }

func (b *fakeBucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	v, ok := b.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{value: v}, nil
}

func (b *fakeBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.data[key] = value
	return uint64(len(b.data)), nil
}

func (b *fakeBucket) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	delete(b.data, key)
	return nil
}

func (b *fakeBucket) Keys(_ context.Context, _ ...jetstream.WatchOpt) ([]string, error) {
	if len(b.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func record(id, anchor, doc string) *requirement.Record {
	return &requirement.Record{ID: id, Anchor: anchor, Document: doc, Attributes: map[string]string{"priority": "high"}}
}

func TestStore_Sync(t *testing.T) {
	ctx := context.Background()
	kv := newFakeBucket()
	s := &Store{kv: kv}

	entries, err := s.List(ctx)
	if err != nil || len(entries) != 0 {
		t.Fatalf("List on empty bucket = %v, %v", entries, err)
	}

	res, err := s.Sync(ctx, []*requirement.Record{
		record("B", "req-B", "api"),
		record("A", "req-A", "api"),
		record("R 1", "req-R_201", "index"),
	}, "build-1")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Stored != 3 || res.Deleted != 0 {
		t.Errorf("first sync = %+v", res)
	}

	res, err = s.Sync(ctx, []*requirement.Record{record("A", "req-A", "api")}, "build-2")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Stored != 1 || res.Deleted != 2 {
		t.Errorf("second sync = %+v", res)
	}

	entries, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "A" || entries[0].BuildID != "build-2" {
		t.Fatalf("List = %+v", entries)
	}
	if entries[0].Attributes["priority"] != "high" {
		t.Errorf("attributes not stored: %+v", entries[0].Attributes)
	}
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	s := &Store{kv: newFakeBucket()}

	rec := record("R 1", "req-R_201", "index")
	rec.Title = "Escaped"
	if err := s.Put(ctx, EntryFromRecord(rec, "b", time.Now())); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e, err := s.Get(ctx, "req-R_201")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.ID != "R 1" || e.Title != "Escaped" || e.DisplayName != "R 1" {
		t.Errorf("Get = %+v", e)
	}

	if _, err := s.Get(ctx, "req-missing"); err != ErrNotFound {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("req-REQ-001"); got != "REQ-001" {
		t.Errorf("Key = %q", got)
	}
}
