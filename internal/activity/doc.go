// Package activity defines the wallet activity model and the ordering and
// merge kernel that every feed view is built on.
//
// An Activity is either a transaction or a swap. Activities are immutable
// values: an update to an existing activity arrives as a new value with the
// same ID.
//
// ORDERING:
//
// Feeds are ordered newest first. Compare defines a total order over
// activities: timestamp descending, then ID descending (byte-wise string
// compare). Because IDs are unique the order has no ties, so every merge is
// deterministic regardless of input order.
//
// MERGING:
//
// The kernel orders IDs, never activities. Callers resolve IDs through a
// Lookup backed by the repository cache. MergeUnbounded is used for ordinary
// pagination appends and realtime inserts. MergeWithCutoff is used when a
// fresh snapshot arrives that may have been paginated to a different depth
// than the state it replaces; it refuses to keep anything older than the
// shallower of the two lists.
package activity
