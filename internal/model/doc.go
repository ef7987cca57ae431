// Package model defines the entity types held in the sync cache.
//
// Entities mirror what the backend pushes over the event channel:
// leads, agents, enrichment jobs, and account quotas. All types are
// plain value structs; the cache copies them on read so callers can
// never alias cached state.
package model
