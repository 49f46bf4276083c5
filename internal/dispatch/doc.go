// Package dispatch fans a campaign out to its resolved audience.
//
// A run claims the campaign, resolves active subscribers opted into the
// campaign's channel, and pushes one unit of work per recipient through a
// bounded worker pool. Each unit renders the template, records a delivery
// attempt and calls the channel provider; transient provider errors are
// retried with bounded backoff, permanent ones fail the attempt immediately.
//
// Idempotence: at most one attempt exists per (campaign, subscriber). A run
// skips recipients that already have an attempt, and the attempt store's
// unique constraint closes the race between two concurrent runs, so resuming
// after a pause or crash never double-sends.
//
// Cancellation is checked before each unit of work, so pausing or cancelling
// a campaign stops new sends promptly without rolling back attempts already
// in flight.
package dispatch
