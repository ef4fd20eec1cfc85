// Package queue defines the durable queue contract between producer and
// consumer: ordered at-least-once delivery with explicit per-message
// acknowledgment and visibility-timeout redelivery.
//
// The AMQP implementation backs production deployments; the memory
// sub-package provides an embedded queue with the same contract for tests
// and single-process runs.
package queue
