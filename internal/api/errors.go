// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "errors"

// Sentinel errors returned by handler-internal helpers before a response is
// written; callers translate these to the appropriate APIError code.
var (
	ErrClipBodyTooLarge = errors.New("api: request body exceeds 10 MiB")
	ErrDuplicateClipID  = errors.New("api: duplicate clip_id in batch")
)
