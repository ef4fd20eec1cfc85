// Package watch holds the domain model of the ingestion pipeline: canonical
// records as they travel through the queue, stored entities with their alarm
// state, and the pure apply/retire transitions every store implementation
// must run atomically per entity.
package watch
