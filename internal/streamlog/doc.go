// Package streamlog implements a durable, replayable message log with
// consumer-group semantics on top of Pebble.
//
// A stream is an append-only sequence of field-map records identified by
// 128-bit sortable IDs (pkg/id). A consumer group is a named cursor over the
// stream plus a pending-entries list (PEL): ReadGroup delivers each record to
// exactly one consumer within the group and tracks it as pending until that
// record is acknowledged. Pending entries carry the owning consumer, delivery
// count, and last-delivery time, which lets a recovery process find entries
// idle past a threshold and claim them under a different consumer identity.
//
// # Keyspace
//
//	stream/{name}/m                  - stream metadata (last assigned ID)
//	stream/{name}/e/{id16}           - record data (crc-framed JSON field map)
//	stream/{name}/g/{group}/c        - group cursor (last delivered ID)
//	stream/{name}/g/{group}/p/{id16} - pending entry (owner, deliveries, last delivery ms)
//
// # Delivery lifecycle
//
//  1. Append: record written, ID assigned past the previous maximum
//  2. ReadGroup: records after the group cursor handed to one consumer,
//     pending entries written, cursor advanced - all in one batch
//  3. Ack: pending entry removed; the record itself is retained for replay
//  4. Claim: a pending entry idle past a threshold is transferred to another
//     consumer (ownership transfer, not a fresh delivery)
//
// Delivery is at-least-once: a consumer that crashes between processing and
// Ack leaves the entry pending, and a claim hands the same record to another
// consumer. Callers must arbitrate duplicates elsewhere (courier does so in
// the relational store).
package streamlog
