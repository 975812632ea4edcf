// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package artifactstore implements the Artifact Store Adapter: keyed blob
// storage with head/get/put/list/delete and custom metadata, backed by an
// embedded BadgerDB instance so the pipeline has no external storage
// dependency to provision.
package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/metrics"
)

// ErrNotFound is returned when a key has no artifact.
var ErrNotFound = errors.New("artifactstore: key not found")

// ErrInvalidKey is returned when a caller-supplied identifier contains
// path-traversal characters.
var ErrInvalidKey = errors.New("artifactstore: invalid key")

// Metadata is an artifact's envelope: its content type, custom key/value
// pairs consulted during listing, and its write timestamp.
type Metadata struct {
	ContentType string            `json:"content_type"`
	Custom      map[string]string `json:"custom,omitempty"`
	Size        int               `json:"size"`
	StoredAt    time.Time         `json:"stored_at"`
}

// Object is a full artifact: its metadata and body.
type Object struct {
	Key string
	Metadata
	Body []byte
}

// ListItem is one entry of a list page — metadata only, no body.
type ListItem struct {
	Key string
	Metadata
}

// Page is one cursor-paged listing result.
type Page struct {
	Items      []ListItem
	NextCursor string
	Truncated  bool
}

// record is the on-disk envelope: metadata plus body, marshaled together as
// one value, so head/list decode the whole record (body included) and
// return only its metadata.
type record struct {
	Metadata Metadata `json:"metadata"`
	Body     []byte   `json:"body"`
}

// Store is a BadgerDB-backed artifact store.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB instance rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ValidateIdentifier rejects path-traversal characters in a caller-supplied
// identifier (e.g. a clip_id) before it is composed into a key. Composed
// keys themselves legitimately contain "/" as a path separator; this check
// applies only to the individual segments callers provide.
func ValidateIdentifier(id string) error {
	if id == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(id, `/\.`) || strings.Contains(id, "\x00") {
		return ErrInvalidKey
	}
	return nil
}

// Put writes body under key with the given content type and optional custom
// metadata, overwriting any existing value.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error {
	rec := record{
		Metadata: Metadata{
			ContentType: contentType,
			Custom:      custom,
			Size:        len(body),
			StoredAt:    time.Now().UTC(),
		},
		Body: body,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("artifactstore: marshal: %w", err)
	}
	start := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err == nil {
		metrics.RecordArtifactPut(time.Since(start), len(body))
	}
	return err
}

// Get fetches the full object (metadata + body) for key.
func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("artifactstore: get: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &Object{Key: key, Metadata: rec.Metadata, Body: rec.Body}, nil
}

// Head returns metadata only. It reads and decodes the full record via Get
// and drops the body.
func (s *Store) Head(ctx context.Context, key string) (*Metadata, error) {
	obj, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &obj.Metadata, nil
}

// Exists reports whether key has an artifact, without fetching its value.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Delete removes the artifact at key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// List returns up to limit keys under prefix, ordered lexicographically,
// starting after cursor (exclusive). customMetadata is populated so callers
// can filter on it (e.g. processing_status) without a second fetch.
func (s *Store) List(ctx context.Context, prefix, cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []ListItem
	var truncated bool

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte(prefix)
		if cursor != "" {
			start = []byte(cursor + "\x00")
		}

		for it.Seek(start); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if cursor != "" && key <= cursor {
				continue
			}
			if len(items) == limit {
				truncated = true
				break
			}
			var rec record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("artifactstore: decode %s: %w", key, err)
			}
			items = append(items, ListItem{Key: key, Metadata: rec.Metadata})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	page := &Page{Items: items, Truncated: truncated}
	if truncated && len(items) > 0 {
		page.NextCursor = items[len(items)-1].Key
	}
	return page, nil
}
