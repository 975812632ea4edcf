// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cache provides the clip deduplication cache: an in-memory,
probabilistic-then-exact clip dedup check that keeps the pipeline from
processing the same Twitch clip twice within the configured window.

# Overview

The cache provides:
  - A Bloom filter fast path: O(1) membership test with no false negatives
  - An LRU cache slow path: TTL-based, exact verification for anything the
    Bloom filter flags as possibly-seen
  - ExactLRU, a zero-false-positive alternative for callers that cannot
    tolerate the Bloom filter's ~1% false positive rate

# Usage

	dedup := cache.NewBloomLRU(100_000, 24*time.Hour, 0.01)

	if dedup.IsDuplicate(clip.ID) {
	    // already processed within the TTL window, skip
	    return nil
	}

IsDuplicate both checks and records in one call: ~90%+ of unique clip IDs
short-circuit at the Bloom filter, only the remainder pay for an LRU lookup.

# Choosing BloomLRU vs ExactLRU

BloomLRU trades a small, bounded false-positive rate for lower memory use
(the Bloom filter need not store full keys). ExactLRU stores every key and
never produces a false positive, at the cost of memory proportional to
capacity. Use ExactLRU where skipping a genuinely new clip as a false
duplicate is worse than the extra memory.

# See Also

  - internal/api: DeduplicationCheck wires this cache into the admin API
  - cmd/server/main.go: constructs the BloomLRU used across the pipeline
*/
package cache
