// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/artifactstore"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/validation"
)

// maxClipBatchBytes bounds the decoded request body for POST /api/twitch/clips.
const maxClipBatchBytes = 10 << 20 // 10 MiB

// listFetchParallelism bounds concurrent Get calls when resolving a page
// of stored clips into full bodies.
const listFetchParallelism = 10

func clipKey(clipID string) string { return "clips/" + clipID + ".json" }

// resolveClips fetches and decodes each listed clip artifact, bounding
// concurrent Get calls to listFetchParallelism. Items that fail to fetch
// or decode are silently dropped; a single stale listing entry should
// not fail the whole page.
func (h *Handler) resolveClips(ctx context.Context, items []artifactstore.ListItem) []models.Clip {
	type result struct {
		clip models.Clip
		ok   bool
	}
	results := make([]result, len(items))
	sem := make(chan struct{}, listFetchParallelism)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, key string) {
			defer wg.Done()
			defer func() { <-sem }()
			obj, err := h.Artifacts.Get(ctx, key)
			if err != nil {
				return
			}
			var clip models.Clip
			if err := json.Unmarshal(obj.Body, &clip); err != nil {
				return
			}
			results[i] = result{clip: clip, ok: true}
		}(i, item.Key)
	}
	wg.Wait()

	clips := make([]models.Clip, 0, len(results))
	for _, r := range results {
		if r.ok {
			clips = append(clips, r.clip)
		}
	}
	return clips
}

// ListRecentClips handles GET /api/twitch/clips: the first 100 stored clips
// in key (clip_id) order, that page sorted newest first by created_at.
func (h *Handler) ListRecentClips(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	page, err := h.Artifacts.List(r.Context(), "clips/", "", 100)
	if err != nil {
		rw.InternalError(err)
		return
	}

	clips := h.resolveClips(r.Context(), page.Items)
	sort.Slice(clips, func(i, j int) bool { return clips[i].CreatedAt.After(clips[j].CreatedAt) })

	rw.SuccessPaginated(clips, PaginationMeta{HasMore: page.Truncated, Limit: 100})
}

// StoreClips handles POST /api/twitch/clips: a validated batch of at most
// 100 clips, rejecting the whole batch on a duplicate clip_id or an item
// that fails validation.
func (h *Handler) StoreClips(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxClipBatchBytes+1))
	if err != nil {
		rw.ValidationError("failed to read request body", nil)
		return
	}
	if len(body) > maxClipBatchBytes {
		rw.ValidationError(ErrClipBodyTooLarge.Error(), nil)
		return
	}

	var req StoreClipsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.ValidationError("malformed request body", nil)
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	seen := make(map[string]struct{}, len(req.Clips))
	clips := make([]models.Clip, 0, len(req.Clips))
	for _, c := range req.Clips {
		if _, dup := seen[c.ClipID]; dup {
			rw.ValidationError(ErrDuplicateClipID.Error(), map[string]string{"clip_id": c.ClipID})
			return
		}
		seen[c.ClipID] = struct{}{}

		createdAt, err := time.Parse(time.RFC3339, c.CreatedAt)
		if err != nil {
			rw.ValidationError("created_at must be RFC3339", map[string]string{"clip_id": c.ClipID})
			return
		}
		clip := models.Clip{
			ClipID:          c.ClipID,
			Title:           c.Title,
			URL:             c.URL,
			EmbedURL:        c.EmbedURL,
			ThumbnailURL:    c.ThumbnailURL,
			DurationSeconds: c.DurationSeconds,
			ViewCount:       c.ViewCount,
			CreatedAt:       createdAt,
			Broadcaster:     c.Broadcaster,
			Creator:         c.Creator,
		}
		if err := clip.Validate(); err != nil {
			rw.ValidationError(err.Error(), map[string]string{"clip_id": c.ClipID})
			return
		}
		clips = append(clips, clip)
	}

	stored := make([]models.Clip, 0, len(clips))
	for _, clip := range clips {
		body, err := json.Marshal(clip)
		if err != nil {
			rw.InternalError(err)
			return
		}
		if err := h.Artifacts.Put(r.Context(), clipKey(clip.ClipID), body, "application/json", nil); err != nil {
			rw.InternalError(err)
			return
		}
		if h.Items != nil {
			item := models.ContentItem{
				ClipID:           clip.ClipID,
				ClipTitle:        clip.Title,
				ClipURL:          clip.URL,
				ClipEmbedURL:     clip.EmbedURL,
				ClipDuration:     clip.DurationSeconds,
				ClipViewCount:    clip.ViewCount,
				ClipCreatedAt:    clip.CreatedAt,
				ClipBroadcaster:  clip.Broadcaster,
				ClipCreator:      clip.Creator,
				ProcessingStatus: models.StatusPending,
			}
			if _, err := h.Items.Store(r.Context(), item); err != nil {
				rw.InternalError(err)
				return
			}
		}
		stored = append(stored, clip)
	}

	rw.Success(map[string]interface{}{"stored": stored, "count": len(stored)})
}

// UpdateClip handles PUT /api/twitch/clips: only title and view_count may
// be changed; every other field on a stored Clip is immutable.
func (h *Handler) UpdateClip(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	var req UpdateClipRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		rw.ValidationError("malformed request body", nil)
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		rw.ValidationError(ve.Error(), ve.ToAPIError().Details)
		return
	}

	obj, err := h.Artifacts.Get(r.Context(), clipKey(req.ClipID))
	if err != nil {
		rw.NotFound("clip not found: " + req.ClipID)
		return
	}
	var clip models.Clip
	if err := json.Unmarshal(obj.Body, &clip); err != nil {
		rw.InternalError(err)
		return
	}

	if req.Title != nil {
		clip.Title = *req.Title
	}
	if req.ViewCount != nil {
		clip.ViewCount = *req.ViewCount
	}

	body, err := json.Marshal(clip)
	if err != nil {
		rw.InternalError(err)
		return
	}
	if err := h.Artifacts.Put(r.Context(), clipKey(clip.ClipID), body, "application/json", nil); err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(clip)
}

// ListStoredClips handles GET /api/twitch/clips/stored: either a single
// clip when ?id= is present, or a cursor-paginated page (cap 100) with
// bodies resolved via a bounded fan-out of listFetchParallelism.
func (h *Handler) ListStoredClips(w http.ResponseWriter, r *http.Request) {
	rw := h.writer(w, r)

	if id := r.URL.Query().Get("id"); id != "" {
		if !models.ValidClipID(id) {
			rw.ValidationError("clip_id fails lexicon check", nil)
			return
		}
		obj, err := h.Artifacts.Get(r.Context(), clipKey(id))
		if err != nil {
			rw.NotFound("clip not found: " + id)
			return
		}
		var clip models.Clip
		if err := json.Unmarshal(obj.Body, &clip); err != nil {
			rw.InternalError(err)
			return
		}
		rw.Success(clip)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	page, err := h.Artifacts.List(r.Context(), "clips/", cursor, limit)
	if err != nil {
		rw.InternalError(err)
		return
	}

	clips := h.resolveClips(r.Context(), page.Items)
	sort.Slice(clips, func(i, j int) bool { return clips[i].CreatedAt.After(clips[j].CreatedAt) })

	rw.SuccessPaginated(clips, PaginationMeta{Cursor: page.NextCursor, HasMore: page.Truncated, Limit: limit})
}
