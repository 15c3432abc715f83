package streamlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/courier/internal/storage/pebble"
	"github.com/rzbill/courier/pkg/id"
)

// ErrNoGroup is returned when an operation references a consumer group that
// was never created on the stream.
var ErrNoGroup = errors.New("streamlog: consumer group does not exist")

// Entry is a decoded stream record.
type Entry struct {
	ID     id.ID
	Fields map[string]string
}

// Stream provides append and consumer-group operations for one named stream.
type Stream struct {
	db   *pebblestore.DB
	name string

	mu  sync.Mutex
	gen *id.Generator
}

// Open initializes a Stream and restores the last assigned ID from metadata.
func Open(db *pebblestore.DB, name string) (*Stream, error) {
	if name == "" {
		return nil, errors.New("streamlog: stream name is required")
	}
	s := &Stream{db: db, name: name, gen: id.NewGenerator()}
	if meta, err := db.Get(keyMeta(name)); err == nil && len(meta) == 16 {
		last, err := id.FromBytes(meta)
		if err != nil {
			return nil, fmt.Errorf("streamlog: corrupt meta for %q: %w", name, err)
		}
		s.gen = id.NewGeneratorAfter(last)
	}
	return s, nil
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Append writes one record and returns its assigned ID.
func (s *Stream) Append(ctx context.Context, fields map[string]string) (id.ID, error) {
	val, err := encodeFields(fields)
	if err != nil {
		return id.ID{}, fmt.Errorf("streamlog: encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rid := s.gen.Next()
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEntry(s.name, rid), val, nil); err != nil {
		return id.ID{}, err
	}
	if err := b.Set(keyMeta(s.name), rid.Bytes(), nil); err != nil {
		return id.ID{}, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return id.ID{}, err
	}
	return rid, nil
}

// CreateGroup creates a consumer group if absent. Creating an existing group
// is a no-op, so startup can call this unconditionally.
func (s *Stream) CreateGroup(group string) error {
	if group == "" {
		return errors.New("streamlog: group name is required")
	}
	key := keyCursor(s.name, group)
	if _, err := s.db.Get(key); err == nil {
		return nil
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return err
	}
	// New groups start at the current tail: only records appended after
	// creation are delivered, matching "entries never delivered to this group".
	var start id.ID
	if meta, err := s.db.Get(keyMeta(s.name)); err == nil && len(meta) == 16 {
		start, _ = id.FromBytes(meta)
	}
	return s.db.Set(key, start.Bytes())
}

// HasGroup reports whether the group exists on this stream.
func (s *Stream) HasGroup(group string) (bool, error) {
	if _, err := s.db.Get(keyCursor(s.name, group)); err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// pendingState is the persisted value of a pending entry.
type pendingState struct {
	Consumer       string `json:"consumer"`
	DeliveryCount  int64  `json:"deliveryCount"`
	LastDeliveryMs int64  `json:"lastDeliveryMs"`
}

// ReadGroup delivers up to count records that were never delivered to the
// group, assigns them to consumer, and records them as pending. The group
// cursor, the pending entries, and nothing else move in one atomic batch.
// Returns no records (and no error) when the stream has nothing new.
func (s *Stream) ReadGroup(ctx context.Context, group, consumer string, count int) ([]Entry, error) {
	if count <= 0 {
		count = 1
	}
	cur, err := s.db.Get(keyCursor(s.name, group))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNoGroup
		}
		return nil, err
	}
	cursor, err := id.FromBytes(cur)
	if err != nil {
		return nil, fmt.Errorf("streamlog: corrupt cursor for %q/%q: %w", s.name, group, err)
	}

	prefix := keyEntryPrefix(s.name)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	now := time.Now().UnixMilli()
	entries := make([]Entry, 0, count)
	last := cursor
	// Seek just past the cursor: entry keys end with the 16-byte ID.
	startKey := keyEntry(s.name, cursor)
	for ok := iter.SeekGE(startKey); ok && len(entries) < count; ok = iter.Next() {
		k := iter.Key()
		if len(k) != len(prefix)+16 {
			continue
		}
		rid, _ := id.FromBytes(k[len(prefix):])
		if rid.Compare(cursor) <= 0 {
			continue
		}
		fields, okDec := decodeFields(iter.Value())
		if !okDec {
			// Damaged record: skip it but still advance past it.
			last = rid
			continue
		}
		st, err := json.Marshal(pendingState{Consumer: consumer, DeliveryCount: 1, LastDeliveryMs: now})
		if err != nil {
			return nil, err
		}
		if err := b.Set(keyPending(s.name, group, rid), st, nil); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: rid, Fields: fields})
		last = rid
	}

	if last.Compare(cursor) == 0 {
		return nil, nil
	}
	if err := b.Set(keyCursor(s.name, group), last.Bytes(), nil); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ack acknowledges delivered records, removing their pending entries.
// Returns how many entries were actually pending (already-acked IDs count 0).
func (s *Stream) Ack(ctx context.Context, group string, ids ...id.ID) (int, error) {
	acked := 0
	b := s.db.NewBatch()
	defer b.Close()
	for _, rid := range ids {
		key := keyPending(s.name, group, rid)
		if _, err := s.db.Get(key); err != nil {
			if errors.Is(err, pebblestore.ErrNotFound) {
				continue
			}
			return acked, err
		}
		if err := b.Delete(key, nil); err != nil {
			return acked, err
		}
		acked++
	}
	if acked == 0 {
		return 0, nil
	}
	return acked, s.db.CommitBatch(ctx, b)
}

// Get loads a single record by ID, regardless of delivery state.
func (s *Stream) Get(rid id.ID) (Entry, bool, error) {
	val, err := s.db.Get(keyEntry(s.name, rid))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	fields, ok := decodeFields(val)
	if !ok {
		return Entry{ID: rid}, false, nil
	}
	return Entry{ID: rid, Fields: fields}, true, nil
}
