package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/rzbill/courier/pkg/log"
)

type fakeTimeoutStore struct {
	ids       []int64
	threshold time.Time
	limit     int
	failed    []int64
}

func (f *fakeTimeoutStore) ProcessingTimeoutIDs(ctx context.Context, threshold time.Time, limit int) ([]int64, error) {
	f.threshold = threshold
	f.limit = limit
	return f.ids, nil
}

func (f *fakeTimeoutStore) FailTimedOut(ctx context.Context, ids []int64) (int64, error) {
	f.failed = append(f.failed, ids...)
	return int64(len(ids)), nil
}

func TestTimeoutSweepFailsStuckRows(t *testing.T) {
	st := &fakeTimeoutStore{ids: []int64{4, 5, 6}}
	sw := NewTimeoutSweeper(st, TimeoutOptions{Timeout: 30 * time.Minute, BatchSize: 500}, log.NewNop())

	if err := sw.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(st.failed) != 3 {
		t.Fatalf("failed %v", st.failed)
	}
	if st.limit != 500 {
		t.Fatalf("limit = %d", st.limit)
	}
	// The threshold sits one timeout behind now.
	if d := time.Since(st.threshold); d < 29*time.Minute || d > 31*time.Minute {
		t.Fatalf("threshold off by %v", d)
	}
}

func TestTimeoutSweepNoCandidatesNoUpdate(t *testing.T) {
	st := &fakeTimeoutStore{}
	sw := NewTimeoutSweeper(st, TimeoutOptions{}, log.NewNop())
	if err := sw.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if st.failed != nil {
		t.Fatalf("no update expected: %v", st.failed)
	}
}
