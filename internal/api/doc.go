// Package api is the request/response client for the lead-management
// backend. The sync layer uses it to populate the cache initially, to
// re-fetch entities on demand, and to issue the non-optimistic half of
// mutations. Retryable failures (5xx, 429) are retried with jittered
// exponential backoff.
package api
