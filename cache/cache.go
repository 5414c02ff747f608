// Package cache stores parsed markup units in BadgerDB keyed by document,
// so unchanged documents skip parsing on the next build.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/c360studio/semreq/markup"
)

const unitPrefix = "unit/"

// Config holds configuration for a cache.
type Config struct {
	// Path is the cache directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps the cache in memory only.
	InMemory bool

	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger *slog.Logger
}

// entry is the stored value of a document.
type entry struct {
	Hash string       `json:"hash"`
	Unit *markup.Unit `json:"unit"`
}

// Cache is a parse cache. It is safe for concurrent use.
type Cache struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the cache, creating the directory if needed.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("cache path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func key(doc string) []byte {
	return []byte(unitPrefix + doc)
}

// Get returns the cached unit of doc if it was stored for the same content
// hash.
func (c *Cache) Get(doc, hash string) (*markup.Unit, bool, error) {
	var e entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(doc))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", doc, err)
	}
	if e.Hash != hash || e.Unit == nil {
		return nil, false, nil
	}
	return e.Unit, true, nil
}

// Put stores the unit parsed from content with the given hash.
func (c *Cache) Put(doc, hash string, unit *markup.Unit) error {
	data, err := json.Marshal(entry{Hash: hash, Unit: unit})
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", doc, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(doc), data)
	})
	if err != nil {
		return fmt.Errorf("cache put %s: %w", doc, err)
	}
	return nil
}

// Delete removes doc from the cache.
func (c *Cache) Delete(doc string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(doc))
	})
	if err != nil {
		return fmt.Errorf("cache delete %s: %w", doc, err)
	}
	return nil
}

// Documents returns the cached document identities in key order.
func (c *Cache) Documents() ([]string, error) {
	var docs []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(unitPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			docs = append(docs, string(it.Item().Key()[len(unitPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	return docs, nil
}

// Prune deletes every cached document not in keep and returns how many
// were removed.
func (c *Cache) Prune(keep map[string]bool) (int, error) {
	docs, err := c.Documents()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, doc := range docs {
		if keep[doc] {
			continue
		}
		if err := c.Delete(doc); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
