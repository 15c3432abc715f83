package streamlog

import (
	"github.com/rzbill/courier/pkg/id"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - stream/{name}/m
// - stream/{name}/e/{id_be16}
// - stream/{name}/g/{group}/c
// - stream/{name}/g/{group}/p/{id_be16}

var (
	streamPrefix = []byte("stream/")
	metaSuffix   = []byte("/m")
	entrySeg     = []byte("/e/")
	groupSeg     = []byte("/g/")
	cursorSuffix = []byte("/c")
	pendingSeg   = []byte("/p/")
)

func keyStream(name string) []byte {
	k := make([]byte, 0, len(streamPrefix)+len(name))
	k = append(k, streamPrefix...)
	k = append(k, name...)
	return k
}

// keyMeta builds the stream metadata key.
func keyMeta(name string) []byte {
	return append(keyStream(name), metaSuffix...)
}

// keyEntry builds an entry key with the big-endian ID for proper ordering.
func keyEntry(name string, rid id.ID) []byte {
	k := append(keyStream(name), entrySeg...)
	return append(k, rid[:]...)
}

// keyEntryPrefix returns the range prefix of all entries in a stream.
func keyEntryPrefix(name string) []byte {
	return append(keyStream(name), entrySeg...)
}

// keyCursor builds the durable group-cursor key.
func keyCursor(name, group string) []byte {
	k := append(keyStream(name), groupSeg...)
	k = append(k, group...)
	return append(k, cursorSuffix...)
}

// keyPending builds a pending-entry key for a group.
func keyPending(name, group string, rid id.ID) []byte {
	k := append(keyStream(name), groupSeg...)
	k = append(k, group...)
	k = append(k, pendingSeg...)
	return append(k, rid[:]...)
}

// keyPendingPrefix returns the range prefix of all pending entries in a group.
func keyPendingPrefix(name, group string) []byte {
	k := append(keyStream(name), groupSeg...)
	k = append(k, group...)
	return append(k, pendingSeg...)
}

// upperBound returns the exclusive end key for scanning a prefix.
func upperBound(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
