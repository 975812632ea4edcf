// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"

	"github.com/dailyrecap/pipeline/internal/artifactstore"
	"github.com/dailyrecap/pipeline/internal/contentitem"
	"github.com/dailyrecap/pipeline/internal/events"
	"github.com/dailyrecap/pipeline/internal/transcribe"
)

// storeAdapter narrows *artifactstore.Store down to the three differently
// shaped ArtifactStore interfaces its consumer packages declare. A single
// adapter type can't implement all three directly: contentitem and events
// each name their own List-item return type, so each gets its own thin
// wrapper sharing the same underlying store.
type storeAdapter struct {
	store *artifactstore.Store
}

func newStoreAdapter(store *artifactstore.Store) storeAdapter {
	return storeAdapter{store: store}
}

// contentItemStore adapts storeAdapter to contentitem.ArtifactStore.
type contentItemStore struct{ storeAdapter }

func (a contentItemStore) Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error {
	return a.store.Put(ctx, key, body, contentType, custom)
}

func (a contentItemStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return obj.Body, nil
}

func (a contentItemStore) List(ctx context.Context, prefix, cursor string, limit int) ([]contentitem.ListedItem, bool, error) {
	page, err := a.store.List(ctx, prefix, cursor, limit)
	if err != nil {
		return nil, false, err
	}
	items := make([]contentitem.ListedItem, len(page.Items))
	for i, li := range page.Items {
		items[i] = contentitem.ListedItem{Key: li.Key, Custom: li.Custom}
	}
	return items, page.Truncated, nil
}

// eventStore adapts storeAdapter to events.ArtifactStore.
type eventStore struct{ storeAdapter }

func (a eventStore) Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error {
	return a.store.Put(ctx, key, body, contentType, custom)
}

func (a eventStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return obj.Body, nil
}

func (a eventStore) List(ctx context.Context, prefix, cursor string, limit int) ([]events.ListedKey, bool, error) {
	page, err := a.store.List(ctx, prefix, cursor, limit)
	if err != nil {
		return nil, false, err
	}
	keys := make([]events.ListedKey, len(page.Items))
	for i, li := range page.Items {
		keys[i] = events.ListedKey{Key: li.Key}
	}
	return keys, page.Truncated, nil
}

// transcriptStore adapts storeAdapter to transcribe.ArtifactStore. Exists
// and Put already match the concrete store's signatures; only Get needs
// its *Object collapsed to a body.
type transcriptStore struct{ storeAdapter }

func (a transcriptStore) Exists(ctx context.Context, key string) (bool, error) {
	return a.store.Exists(ctx, key)
}

func (a transcriptStore) Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error {
	return a.store.Put(ctx, key, body, contentType, custom)
}

func (a transcriptStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return obj.Body, nil
}
