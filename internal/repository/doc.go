// Package repository is the concrete activity source behind feed sessions.
//
// A Repository layers three things: a SQLite store used as the persistent
// cache, a Backend that serves network pages, and an in-memory map of local
// and pending activities. Fresh activities enter through Ingest, which
// persists them and publishes a realtime update on the bus.
package repository
