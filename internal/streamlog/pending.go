package streamlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/courier/internal/storage/pebble"
	"github.com/rzbill/courier/pkg/id"
)

// PendingEntry describes one delivered-but-unacknowledged record.
type PendingEntry struct {
	ID            id.ID
	Consumer      string
	DeliveryCount int64
	Idle          time.Duration
}

// PendingSummary returns the number of pending entries in the group.
func (s *Stream) PendingSummary(group string) (int64, error) {
	if ok, err := s.HasGroup(group); err != nil {
		return 0, err
	} else if !ok {
		return 0, ErrNoGroup
	}
	prefix := keyPendingPrefix(s.name, group)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var total int64
	for ok := iter.First(); ok; ok = iter.Next() {
		total++
	}
	return total, nil
}

// Pending returns up to count pending-entry descriptors in ID order, each
// carrying the elapsed idle time since its last delivery.
func (s *Stream) Pending(ctx context.Context, group string, count int) ([]PendingEntry, error) {
	if count <= 0 {
		count = 1
	}
	prefix := keyPendingPrefix(s.name, group)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	now := time.Now().UnixMilli()
	out := make([]PendingEntry, 0, count)
	for ok := iter.First(); ok && len(out) < count; ok = iter.Next() {
		k := iter.Key()
		if len(k) != len(prefix)+16 {
			continue
		}
		rid, _ := id.FromBytes(k[len(prefix):])
		var st pendingState
		if err := json.Unmarshal(iter.Value(), &st); err != nil {
			continue
		}
		idle := time.Duration(now-st.LastDeliveryMs) * time.Millisecond
		if idle < 0 {
			idle = 0
		}
		out = append(out, PendingEntry{
			ID:            rid,
			Consumer:      st.Consumer,
			DeliveryCount: st.DeliveryCount,
			Idle:          idle,
		})
	}
	return out, nil
}

// Claim transfers ownership of the given pending entries to consumer,
// provided each has been idle for at least minIdle. This is an ownership
// transfer on the pending list, not a fresh delivery: the delivery count is
// incremented and the idle clock resets, but the group cursor does not move.
//
// Returns the claimed records. A claimed entry whose record is missing or
// undecodable is returned with nil Fields so the caller can drop it.
func (s *Stream) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, ids []id.ID) ([]Entry, error) {
	now := time.Now().UnixMilli()
	b := s.db.NewBatch()
	defer b.Close()

	claimed := make([]Entry, 0, len(ids))
	for _, rid := range ids {
		key := keyPending(s.name, group, rid)
		val, err := s.db.Get(key)
		if err != nil {
			if errors.Is(err, pebblestore.ErrNotFound) {
				// Acked (or never pending) since the caller listed it.
				continue
			}
			return nil, err
		}
		var st pendingState
		if err := json.Unmarshal(val, &st); err != nil {
			continue
		}
		if time.Duration(now-st.LastDeliveryMs)*time.Millisecond < minIdle {
			continue
		}
		st.Consumer = consumer
		st.DeliveryCount++
		st.LastDeliveryMs = now
		nv, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		if err := b.Set(key, nv, nil); err != nil {
			return nil, err
		}

		entry := Entry{ID: rid}
		if raw, err := s.db.Get(keyEntry(s.name, rid)); err == nil {
			if fields, ok := decodeFields(raw); ok {
				entry.Fields = fields
			}
		}
		claimed = append(claimed, entry)
	}

	if len(claimed) == 0 {
		return nil, nil
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return claimed, nil
}
