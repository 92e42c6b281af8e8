// Package store provides the SQLite-backed persistent activity cache.
//
// The store keeps two things per account:
//   - Activities: the latest known version of every activity, keyed by ID
//   - Scope lists: the ID list last persisted for a feed scope, plus whether
//     that scope's history is known to be complete
//
// # Patterns
//
// Newer fetch wins:
//   - Activity writes are upserts; the row always holds the most recent
//     payload delivered for an ID
//
// Deterministic reads:
//   - Every list query orders by timestamp DESC, id COLLATE BINARY DESC,
//     the same total order the feed kernel uses
//
// Canonical payloads:
//   - Activity payloads are stored as canonical JSON (see
//     activity.MarshalCanonical)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Local and pending activities are never written here; the repository keeps
// them in memory only.
package store
