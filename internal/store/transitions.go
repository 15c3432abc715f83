package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"github.com/rzbill/courier/internal/store/model"
)

// affected unwraps the row count from an Exec result.
func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimWaiting moves WAITING -> PROCESSING for a freshly enqueued message.
// Returns true when this caller won the claim.
func (s *Store) ClaimWaiting(ctx context.Context, id int64) (bool, error) {
	n, err := affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = ?", s.status.processing).
		Where("id = ?", id).
		Where("status_id = ?", s.status.waiting).
		Where("processed_at IS NULL").
		Exec(ctx))
	return n == 1, err
}

// ClaimRetry moves FAILED -> PROCESSING for another email attempt. Only
// billing messages retry, and only while retry_count is under maxRetry.
// The retry count increments and processed_at clears inside the same guard,
// so a concurrent claimer can never double-increment.
func (s *Store) ClaimRetry(ctx context.Context, id int64, maxRetry int) (bool, error) {
	n, err := affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = ?", s.status.processing).
		Set("retry_count = retry_count + 1").
		Set("processed_at = NULL").
		Where("id = ?", id).
		Where("status_id = ?", s.status.failed).
		Where("purpose_id = ?", s.billing).
		Where("retry_count < ?", maxRetry).
		Exec(ctx))
	return n == 1, err
}

// ClaimFallback moves EXCEEDED -> PROCESSING and forces the channel to SMS.
// Only billing messages escalate.
func (s *Store) ClaimFallback(ctx context.Context, id int64) (bool, error) {
	n, err := affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = ?", s.status.processing).
		Set("channel_id = ?", s.smsChannel).
		Set("processed_at = NULL").
		Where("id = ?", id).
		Where("status_id = ?", s.status.exceeded).
		Where("purpose_id = ?", s.billing).
		Exec(ctx))
	return n == 1, err
}

// FinalizeSuccess moves PROCESSING -> SUCCESS and stamps processed_at.
// The processed_at IS NULL guard makes finalization exactly-once: a sweeper
// that force-failed the row in the meantime leaves nothing for this to match.
func (s *Store) FinalizeSuccess(ctx context.Context, id int64) (bool, error) {
	n, err := affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = ?", s.status.success).
		Set("processed_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status_id = ?", s.status.processing).
		Where("processed_at IS NULL").
		Exec(ctx))
	return n == 1, err
}

// FinalizeFailure moves PROCESSING -> FAILED, or to EXCEEDED when the retry
// budget is already spent. Same exactly-once guard as FinalizeSuccess.
func (s *Store) FinalizeFailure(ctx context.Context, id int64, maxRetry int) (bool, error) {
	n, err := affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = CASE WHEN retry_count >= ? THEN ? ELSE ? END",
			maxRetry, s.status.exceeded, s.status.failed).
		Set("processed_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status_id = ?", s.status.processing).
		Where("processed_at IS NULL").
		Exec(ctx))
	return n == 1, err
}

// ForceFail moves PROCESSING -> FAILED regardless of processed_at. Recovery
// uses it for rows whose in-flight work is known to be lost.
func (s *Store) ForceFail(ctx context.Context, id int64) (bool, error) {
	n, err := affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = ?", s.status.failed).
		Set("processed_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status_id = ?", s.status.processing).
		Exec(ctx))
	return n == 1, err
}

// ProcessingTimeoutIDs lists rows stuck in PROCESSING since before the
// threshold, oldest first, up to limit.
func (s *Store) ProcessingTimeoutIDs(ctx context.Context, threshold time.Time, limit int) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().
		Model((*model.SendResult)(nil)).
		Column("id").
		Where("status_id = ?", s.status.processing).
		Where("requested_at <= ?", threshold).
		Order("id ASC").
		Limit(limit).
		Scan(ctx, &ids)
	return ids, err
}

// FailTimedOut bulk-fails the given rows, re-checking PROCESSING so a row
// finalized between the select and this update is left alone. Returns how
// many rows actually moved.
func (s *Store) FailTimedOut(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return affected(s.db.NewUpdate().
		Model((*model.SendResult)(nil)).
		Set("status_id = ?", s.status.failed).
		Set("processed_at = ?", time.Now()).
		Where("id IN (?)", bun.In(ids)).
		Where("status_id = ?", s.status.processing).
		Exec(ctx))
}
