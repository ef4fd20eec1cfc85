// Package api exposes the entity store over a read-only HTTP interface.
package api
