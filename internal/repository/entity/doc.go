// Package entity persists the last known state of every watchlist entity
// together with its alarm flag.
//
// Two implementations share the same pure apply/retire transitions from the
// domain package: a Postgres store using short row-locking transactions, and
// an in-memory store with per-entity locks and optional JSON snapshots for
// tests and single-process runs.
package entity
