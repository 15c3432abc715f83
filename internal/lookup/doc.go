// Package lookup resolves symbolic status/channel/purpose codes to their
// persisted identifiers.
//
// The code table is read once at startup into an immutable map; it is never
// refreshed at runtime. A missing required mapping is a construction error,
// treated as fatal configuration by the caller - per-message code resolution
// can then never fail.
package lookup
