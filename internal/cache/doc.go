// Package cache holds the locally synchronized view of server
// entities and is the sole writer of it.
//
// Every mutation funnels through the Synchronizer: inbound push events
// are reconciled by category (create, merge, delete, field update),
// optimistic local edits are applied immediately and confirmed or
// rolled back when the request settles, and REST fetches install
// server truth with last-request-wins semantics. UI consumers only
// read snapshots; derived groupings (leads by stage, jobs by state)
// are computed lazily at read time, never maintained eagerly.
//
// Delivery is at least once and ordered only within one event type, so
// reconciliation is keyed on stable identifiers and conflicting writes
// resolve by last-write-wins on the event timestamp. An event that
// references an unknown key materializes a placeholder entry rather
// than being discarded; the background refresher replaces placeholders
// with full fetches.
package cache
