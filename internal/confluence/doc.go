// Package confluence is the REST client for Confluence Cloud used by the
// wikid gateway: page reads and optimistic-concurrency writes in the v2
// API, plus the v1 endpoints that v2 still lacks (search, labels, page
// history, restrictions). Outbound requests carry correlation IDs, honor
// Retry-After throttling hints, and authenticate with either an API
// token or a managed OAuth bearer token.
package confluence
