// Package analytics ingests delivery and engagement events and aggregates
// them into per-campaign statistics.
//
// Ingestion is a pure append: provider webhooks are at-least-once, so the
// same logical event may be written many times and is never rejected as a
// duplicate. Deduplication happens at read time in ComputeStats, which
// counts distinct subscribers for unique opens and clicks. A stats read
// concurrent with ingestion is eventually consistent, not a snapshot.
package analytics
