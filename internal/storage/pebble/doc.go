// Package pebblestore wraps a Pebble database with courier's durability
// policy and small helpers for batched, atomic multi-key updates.
//
// The stream log keeps all of its state (entries, group cursors, pending
// entries) in a single Pebble keyspace; every multi-key mutation goes through
// a batch committed with the configured fsync mode so a crash never leaves a
// half-applied transition behind.
package pebblestore
