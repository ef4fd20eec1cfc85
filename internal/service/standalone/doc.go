// Package standalone runs producer, consumer, and API in one process
// over an embedded queue and the snapshot-backed store.
package standalone
