// Package store defines the key-value capability the civic core runs on:
// string-keyed hashes, unordered sets, and sorted sets with per-key atomic
// operations. The production backend is Redis; an in-memory backend backs
// unit tests. The key shapes written through this interface are a
// compatibility contract with existing datasets, so any backend must
// preserve them verbatim.
package store

import "context"

// KV is the storage capability injected into every core component.
type KV interface {
	// Hashes.
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Unordered sets.
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// Sorted sets. ZScore reports whether the member was present.
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) error
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)

	// Keys enumerates keys matching a glob pattern. Ordering is
	// backend-defined but stable for a fixed store state.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Del(ctx context.Context, keys ...string) error
}
