// Package relay implements the selection-and-dispatch pipeline: paginated
// candidate search, content filtering, history-based deduplication,
// size-constrained variant fallback, and webhook delivery.
//
// The pipeline is strictly sequential. Delivery targets are rate limited and
// the history set is mutated across requests, so nothing here is run
// concurrently. External collaborators (search API, image CDN, webhooks) are
// consumed through the small interfaces in interfaces.go, which keeps every
// stage testable with in-memory fakes.
package relay
