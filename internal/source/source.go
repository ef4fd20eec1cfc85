package source

import (
	"context"
	"errors"
)

// RawRecord is one untrusted payload as decoded from the source.
// Its shape is controlled externally.
type RawRecord map[string]any

// Source yields the full bounded dataset of the external watchlist.
type Source interface {
	// Fetch returns every raw record the source currently exposes.
	// The sweep is all-or-nothing: a partial result is never returned,
	// so a missing entity downstream always means it really left the list.
	Fetch(ctx context.Context) ([]RawRecord, error)
}

var (
	// ErrSourceUnavailable wraps network and upstream failures; the caller
	// retries with bounded backoff and otherwise skips the cycle.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedRecord marks a raw record that cannot be normalized.
	// Such records are skipped, never retried.
	ErrMalformedRecord = errors.New("malformed source record")
)
