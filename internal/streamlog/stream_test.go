package streamlog

import (
	"context"
	"errors"
	"testing"

	pebblestore "github.com/rzbill/courier/internal/storage/pebble"
)

func openTestStream(t *testing.T) *Stream {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s, err := Open(db, "messages")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	return s
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	s := openTestStream(t)
	ctx := context.Background()
	a, err := s.Append(ctx, map[string]string{"n": "1"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := s.Append(ctx, map[string]string{"n": "2"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("ids not increasing: %v then %v", a, b)
	}
}

func TestCreateGroupIdempotent(t *testing.T) {
	s := openTestStream(t)
	if err := s.CreateGroup("g"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateGroup("g"); err != nil {
		t.Fatalf("create again: %v", err)
	}
	ok, err := s.HasGroup("g")
	if err != nil || !ok {
		t.Fatalf("has group: %v %v", ok, err)
	}
}

func TestReadGroupRequiresGroup(t *testing.T) {
	s := openTestStream(t)
	if _, err := s.ReadGroup(context.Background(), "missing", "c1", 10); !errors.Is(err, ErrNoGroup) {
		t.Fatalf("want ErrNoGroup, got %v", err)
	}
}

func TestReadGroupDeliversOnlyNewEntries(t *testing.T) {
	s := openTestStream(t)
	ctx := context.Background()
	if err := s.CreateGroup("g"); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := s.Append(ctx, map[string]string{"sendResultId": "1"})
	b, _ := s.Append(ctx, map[string]string{"sendResultId": "2"})

	got, err := s.ReadGroup(ctx, "g", "c1", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].ID != a || got[1].ID != b {
		t.Fatalf("unexpected batch: %+v", got)
	}

	// A second read must not re-deliver.
	got, err = s.ReadGroup(ctx, "g", "c1", 10)
	if err != nil {
		t.Fatalf("read2: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no redelivery, got %d", len(got))
	}
}

func TestGroupCreatedAtTailSkipsHistory(t *testing.T) {
	s := openTestStream(t)
	ctx := context.Background()
	_, _ = s.Append(ctx, map[string]string{"sendResultId": "1"})
	if err := s.CreateGroup("late"); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.ReadGroup(ctx, "late", "c1", 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("late group should not see history, got %d", len(got))
	}
	after, _ := s.Append(ctx, map[string]string{"sendResultId": "2"})
	got, _ = s.ReadGroup(ctx, "late", "c1", 10)
	if len(got) != 1 || got[0].ID != after {
		t.Fatalf("late group should see new entry: %+v", got)
	}
}

func TestAckRemovesPending(t *testing.T) {
	s := openTestStream(t)
	ctx := context.Background()
	_ = s.CreateGroup("g")
	rid, _ := s.Append(ctx, map[string]string{"sendResultId": "7"})
	if _, err := s.ReadGroup(ctx, "g", "c1", 1); err != nil {
		t.Fatalf("read: %v", err)
	}

	n, err := s.PendingSummary("g")
	if err != nil || n != 1 {
		t.Fatalf("pending summary: %d %v", n, err)
	}

	acked, err := s.Ack(ctx, "g", rid)
	if err != nil || acked != 1 {
		t.Fatalf("ack: %d %v", acked, err)
	}
	// Double-ack is a no-op.
	acked, err = s.Ack(ctx, "g", rid)
	if err != nil || acked != 0 {
		t.Fatalf("double ack: %d %v", acked, err)
	}
	n, _ = s.PendingSummary("g")
	if n != 0 {
		t.Fatalf("pending after ack: %d", n)
	}
}

func TestReopenKeepsIDsMonotonic(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	s, _ := Open(db, "messages")
	first, _ := s.Append(ctx, map[string]string{"n": "1"})
	_ = db.Close()

	db, err = pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen pebble: %v", err)
	}
	defer db.Close()
	s, _ = Open(db, "messages")
	second, _ := s.Append(ctx, map[string]string{"n": "2"})
	if second.Compare(first) <= 0 {
		t.Fatalf("ids regressed after reopen: %v then %v", first, second)
	}
}
