// Package version exposes build metadata (semantic version, commit, build
// time) injected via ldflags, plus a cobra subcommand to print it.
package version
