// Package memory provides an embedded in-process queue honoring the durable
// queue contract (at-least-once, explicit acks, visibility-timeout
// redelivery) for tests and the standalone single-process mode.
package memory
