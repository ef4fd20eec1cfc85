// Package web wires the read-only entity API to the configured store.
package web
