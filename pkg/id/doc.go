// Package id provides 128-bit, lexicographically sortable record identifiers
// for stream entries.
//
// An ID is encoded as 16 big-endian bytes: [8 bytes ms_timestamp][8 bytes
// sequence], so byte-wise key ordering matches creation order. The textual
// form is "{ms}-{seq}", which keeps IDs human-readable in logs and on the
// wire.
package id
