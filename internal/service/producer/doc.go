// Package producer sweeps the watchlist source on a fixed interval and
// publishes normalized records to the durable queue, including retire
// tombstones for entities that left the watchlist between sweeps.
package producer
