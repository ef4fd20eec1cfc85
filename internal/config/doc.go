// Package config defines settings used by the redwatch binaries and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type covers the watchlist source, the durable queue, the entity
// store and the read-only API surface.
package config
