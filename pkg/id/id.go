package id

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable identifier encoded as 16 bytes
// big-endian: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// Ms returns the millisecond timestamp component.
func (i ID) Ms() int64 { return int64(binary.BigEndian.Uint64(i[0:8])) }

// Seq returns the sequence component.
func (i ID) Seq() uint64 { return binary.BigEndian.Uint64(i[8:16]) }

// String renders the ID as "{ms}-{seq}".
func (i ID) String() string {
	return strconv.FormatInt(i.Ms(), 10) + "-" + strconv.FormatUint(i.Seq(), 10)
}

// IsZero reports whether the ID is the zero value.
func (i ID) IsZero() bool { return i == ID{} }

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int {
	for idx := 0; idx < 16; idx++ {
		if i[idx] < other[idx] {
			return -1
		}
		if i[idx] > other[idx] {
			return 1
		}
	}
	return 0
}

// FromBytes reconstructs an ID from its 16-byte form.
func FromBytes(b []byte) (ID, error) {
	var i ID
	if len(b) != 16 {
		return i, fmt.Errorf("id: want 16 bytes, got %d", len(b))
	}
	copy(i[:], b)
	return i, nil
}

// Parse reconstructs an ID from its "{ms}-{seq}" textual form.
func Parse(s string) (ID, error) {
	var i ID
	dash := strings.IndexByte(s, '-')
	if dash <= 0 || dash == len(s)-1 {
		return i, fmt.Errorf("id: malformed %q", s)
	}
	ms, err := strconv.ParseInt(s[:dash], 10, 64)
	if err != nil {
		return i, fmt.Errorf("id: malformed %q: %w", s, err)
	}
	seq, err := strconv.ParseUint(s[dash+1:], 10, 64)
	if err != nil {
		return i, fmt.Errorf("id: malformed %q: %w", s, err)
	}
	return Make(ms, seq), nil
}

// Make builds an ID from its components.
func Make(ms int64, seq uint64) ID {
	var i ID
	binary.BigEndian.PutUint64(i[0:8], uint64(ms))
	binary.BigEndian.PutUint64(i[8:16], seq)
	return i
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NewGeneratorAfter creates a Generator whose next ID sorts after last.
// Used to restore monotonicity when reopening a persisted sequence.
func NewGeneratorAfter(last ID) *Generator {
	return &Generator{lastMs: last.Ms(), sequence: last.Seq()}
}

// NowMs returns current time in milliseconds since Unix epoch. Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. If the clock goes backwards, it keeps lastMs and
// increments the sequence. If the sequence overflows within the same
// millisecond, it waits for the next one.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.sequence == math.MaxUint64 {
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}

	g.lastMs = ms
	return Make(ms, g.sequence)
}
