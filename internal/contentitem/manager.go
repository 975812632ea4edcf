// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contentitem implements the Content-Item Manager (C7): the
// per-clip aggregate record, its lifecycle state machine, and date/status
// queryable listing, built directly on the Artifact Store Adapter.
package contentitem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/models"
)

// ErrNotFound is returned when a ContentItem does not exist at the derived key.
var ErrNotFound = errors.New("contentitem: not found")

// ErrStatusRegression is returned when an update would move processing_status
// backwards.
var ErrStatusRegression = errors.New("contentitem: status regression rejected")

// ArtifactStore is the subset of the artifact store this package needs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix, cursor string, limit int) (items []ListedItem, truncated bool, err error)
}

// ListedItem is the minimal shape List needs: a key plus the custom
// metadata the manager writes alongside each item, so the status filter
// can run without fetching the body.
type ListedItem struct {
	Key    string
	Custom map[string]string
}

// Manager stores and queries ContentItems.
type Manager struct {
	store ArtifactStore
}

// New builds a Manager over store.
func New(store ArtifactStore) *Manager {
	return &Manager{store: store}
}

func customMetadata(item models.ContentItem) map[string]string {
	return map[string]string{
		"schema-version":    strconv.Itoa(item.SchemaVersion),
		"clip-id":           item.ClipID,
		"created-at":        item.ClipCreatedAt.UTC().Format(time.RFC3339),
		"processing-status": string(item.ProcessingStatus),
	}
}

// Store stamps stored_at, validates, and persists item, deriving its key
// from clip_created_at in UTC.
func (m *Manager) Store(ctx context.Context, item models.ContentItem) (*models.ContentItem, error) {
	now := time.Now().UTC()
	item.StoredAt = now
	if item.SchemaVersion == 0 {
		item.SchemaVersion = models.CurrentSchemaVersion
	}

	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("contentitem: validate: %w", err)
	}

	body, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("contentitem: marshal: %w", err)
	}

	if err := m.store.Put(ctx, item.Key(), body, "application/json", customMetadata(item)); err != nil {
		return nil, fmt.Errorf("contentitem: persist: %w", err)
	}
	return &item, nil
}

// Get fetches a single ContentItem by clip_id and its creation time (needed
// to derive the key).
func (m *Manager) Get(ctx context.Context, clipID string, createdAt time.Time) (*models.ContentItem, error) {
	key := (&models.ContentItem{ClipID: clipID, ClipCreatedAt: createdAt}).Key()
	body, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, ErrNotFound
	}
	var item models.ContentItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("contentitem: unmarshal: %w", err)
	}
	return &item, nil
}

// Query filters a List call.
type Query struct {
	From     time.Time
	To       time.Time
	Status   models.ProcessingStatus
	Category models.ContentCategory
	Limit    int
	Cursor   string
}

// ListResult is one page of a date-range listing.
type ListResult struct {
	Items      []models.ContentItem
	NextCursor string
	HasMore    bool
}

// List enumerates year/month prefixes overlapping [From, To], respecting
// cursor within the current month only. The status filter uses the
// listing's custom metadata, so bodies of items with another status are
// never fetched; the category filter is applied after the body is fetched.
func (m *Manager) List(ctx context.Context, q Query) (*ListResult, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	result := &ListResult{}
	for _, month := range monthPrefixesBetween(q.From, q.To) {
		cursor := ""
		if month == monthPrefix(q.From.UTC()) {
			cursor = q.Cursor
		}
		for {
			if len(result.Items) >= limit {
				result.HasMore = true
				return result, nil
			}
			items, truncated, err := m.store.List(ctx, month, cursor, limit-len(result.Items))
			if err != nil {
				return nil, fmt.Errorf("contentitem: list %s: %w", month, err)
			}
			for _, li := range items {
				if q.Status != "" && li.Custom["processing-status"] != string(q.Status) {
					continue
				}
				body, err := m.store.Get(ctx, li.Key)
				if err != nil {
					continue
				}
				var item models.ContentItem
				if err := json.Unmarshal(body, &item); err != nil {
					continue
				}
				if q.Category != "" && item.ContentCategory != q.Category {
					continue
				}
				result.Items = append(result.Items, item)
				result.NextCursor = li.Key
				if len(result.Items) >= limit {
					break
				}
			}
			if !truncated || len(items) == 0 {
				break
			}
			cursor = items[len(items)-1].Key
		}
	}
	return result, nil
}

// ListReady returns every ContentItem in [from, to) with status
// ready_for_content, paging through List until the range is exhausted. It
// satisfies manifest.ContentItemLister.
func (m *Manager) ListReady(ctx context.Context, from, to time.Time) ([]models.ContentItem, error) {
	var out []models.ContentItem
	cursor := ""
	for {
		page, err := m.List(ctx, Query{
			From:   from,
			To:     to,
			Status: models.StatusReadyForContent,
			Limit:  100,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if !item.ClipCreatedAt.Before(from) && item.ClipCreatedAt.Before(to) {
				out = append(out, item)
			}
		}
		if !page.HasMore {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// Update performs a read-modify-write of the item at (clipID, createdAt):
// mutate applies the caller's changes to a copy of the stored item. Update
// restores immutable fields from the stored version and rejects status
// regressions before persisting.
func (m *Manager) Update(ctx context.Context, clipID string, createdAt time.Time, mutate func(*models.ContentItem)) (*models.ContentItem, error) {
	existing, err := m.Get(ctx, clipID, createdAt)
	if err != nil {
		return nil, err
	}

	updated := *existing
	mutate(&updated)

	updated.SchemaVersion = existing.SchemaVersion
	updated.ClipID = existing.ClipID
	updated.ClipTitle = existing.ClipTitle
	updated.ClipURL = existing.ClipURL
	updated.ClipDuration = existing.ClipDuration
	updated.ClipCreatedAt = existing.ClipCreatedAt
	updated.StoredAt = existing.StoredAt

	if !models.CanAdvance(existing.ProcessingStatus, updated.ProcessingStatus) {
		return nil, ErrStatusRegression
	}

	if err := updated.Validate(); err != nil {
		return nil, fmt.Errorf("contentitem: validate: %w", err)
	}

	body, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("contentitem: marshal: %w", err)
	}
	if err := m.store.Put(ctx, updated.Key(), body, "application/json", customMetadata(updated)); err != nil {
		return nil, fmt.Errorf("contentitem: persist: %w", err)
	}
	return &updated, nil
}

// StatusCounts scans the month prefix using custom metadata only (no body
// fetches) and returns a count per processing_status.
func (m *Manager) StatusCounts(ctx context.Context, month time.Time) (map[models.ProcessingStatus]int, error) {
	counts := map[models.ProcessingStatus]int{}
	prefix := monthPrefix(month.UTC())
	cursor := ""
	for {
		items, truncated, err := m.store.List(ctx, prefix, cursor, 100)
		if err != nil {
			return nil, fmt.Errorf("contentitem: status counts: %w", err)
		}
		for _, li := range items {
			counts[models.ProcessingStatus(li.Custom["processing-status"])]++
		}
		if !truncated || len(items) == 0 {
			break
		}
		cursor = items[len(items)-1].Key
	}
	return counts, nil
}

func monthPrefix(t time.Time) string {
	return fmt.Sprintf("content-items/%04d/%02d/", t.Year(), int(t.Month()))
}

func monthPrefixesBetween(from, to time.Time) []string {
	from = from.UTC()
	to = to.UTC()
	var prefixes []string
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		prefixes = append(prefixes, monthPrefix(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return prefixes
}
