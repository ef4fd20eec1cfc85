// Package consumer drains the durable queue and applies each record to
// the entity store with at-least-once, ack-after-commit semantics.
package consumer
