// Package source talks to the external watchlist API and normalizes its
// payloads into canonical records.
//
// The HTTP client walks the paged list endpoint, resolves every entry into
// its detail document and attaches the person's thumbnail. Normalization is
// a pure mapping that flattens untrusted payloads into deterministic
// name/value field sets, rejecting records without an identifier.
package source
