// Package storage mirrors the requirement registry into a NATS KV bucket so
// consumers outside the build can look requirements up by identity.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semreq/requirement"
)

// BucketRequirements is the default bucket name.
const BucketRequirements = "SEMREQ_REQUIREMENTS"

// bucket is the subset of jetstream.KeyValue the store uses.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error)
}

// Entry is the stored form of a requirement.
type Entry struct {
	ID          string            `json:"id"`
	Label       string            `json:"label,omitempty"`
	Title       string            `json:"title,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Document    string            `json:"document"`
	Anchor      string            `json:"anchor"`
	Line        int               `json:"line,omitempty"`
	BuildID     string            `json:"build_id,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EntryFromRecord converts a registered record.
func EntryFromRecord(r *requirement.Record, buildID string, now time.Time) Entry {
	return Entry{
		ID:          r.ID,
		Label:       r.Label,
		Title:       r.Title,
		DisplayName: r.Name(),
		Text:        r.Text(),
		Attributes:  r.Attributes,
		Document:    r.Document,
		Anchor:      r.Anchor,
		Line:        r.Line,
		BuildID:     buildID,
		UpdatedAt:   now,
	}
}

// Store provides requirement storage operations backed by NATS KV.
type Store struct {
	kv bucket
}

// NewStore opens the bucket, creating it if it does not exist.
func NewStore(ctx context.Context, js jetstream.JetStream, name string) (*Store, error) {
	if name == "" {
		name = BucketRequirements
	}
	kv, err := getOrCreateBucket(ctx, js, name)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", name, err)
	}
	return &Store{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "semreq requirement registry",
		History:     5,
	})
}

// Key returns the bucket key of a requirement identity. Keys are the
// record anchors, which only use characters valid in KV keys.
func Key(anchor string) string {
	return strings.TrimPrefix(anchor, "req-")
}

// Put stores an entry.
func (s *Store) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal requirement %s: %w", e.ID, err)
	}
	if _, err := s.kv.Put(ctx, Key(e.Anchor), data); err != nil {
		return fmt.Errorf("store requirement %s: %w", e.ID, err)
	}
	return nil
}

// Get retrieves an entry by anchor.
func (s *Store) Get(ctx context.Context, anchor string) (*Entry, error) {
	entry, err := s.kv.Get(ctx, Key(anchor))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get requirement: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(entry.Value(), &e); err != nil {
		return nil, fmt.Errorf("unmarshal requirement: %w", err)
	}
	return &e, nil
}

// List returns every stored entry sorted by identity. Entries that fail to
// load are skipped.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list requirement keys: %w", err)
	}
	entries := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(entry.Value(), &e); err != nil {
			continue
		}
		entries = append(entries, &e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// SyncResult counts the changes of a Sync.
type SyncResult struct {
	Stored  int
	Deleted int
}

// Sync makes the bucket hold exactly records: every record is stored and
// keys of requirements that no longer exist are deleted.
func (s *Store) Sync(ctx context.Context, records []*requirement.Record, buildID string) (SyncResult, error) {
	var res SyncResult
	now := time.Now().UTC()
	live := make(map[string]bool, len(records))
	for _, r := range records {
		if err := s.Put(ctx, EntryFromRecord(r, buildID, now)); err != nil {
			return res, err
		}
		live[Key(r.Anchor)] = true
		res.Stored++
	}

	keys, err := s.kv.Keys(ctx)
	if err != nil && !errors.Is(err, jetstream.ErrNoKeysFound) {
		return res, fmt.Errorf("list requirement keys: %w", err)
	}
	for _, key := range keys {
		if live[key] {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			return res, fmt.Errorf("delete requirement %s: %w", key, err)
		}
		res.Deleted++
	}
	return res, nil
}
