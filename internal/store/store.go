package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/store/model"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("store: not found")

// statusIDs caches the resolved send-status code ids so transition SQL never
// consults the lookup per call.
type statusIDs struct {
	waiting    int64
	processing int64
	success    int64
	failed     int64
	exceeded   int64
}

// Store executes the conditional delivery-state transitions against the
// relational database.
type Store struct {
	db bun.IDB
	lk *lookup.Lookup

	status     statusIDs
	smsChannel int64
	billing    int64
}

// New builds a Store over an already-loaded code lookup.
func New(db bun.IDB, lk *lookup.Lookup) *Store {
	return &Store{
		db: db,
		lk: lk,
		status: statusIDs{
			waiting:    lk.StatusID(lookup.StatusWaiting),
			processing: lk.StatusID(lookup.StatusProcessing),
			success:    lk.StatusID(lookup.StatusSuccess),
			failed:     lk.StatusID(lookup.StatusFailed),
			exceeded:   lk.StatusID(lookup.StatusExceeded),
		},
		smsChannel: lk.ChannelID(lookup.ChannelSMS),
		billing:    lk.PurposeID(lookup.PurposeBilling),
	}
}

// Get loads one send result.
func (s *Store) Get(ctx context.Context, id int64) (*model.SendResult, error) {
	sr := new(model.SendResult)
	err := s.db.NewSelect().Model(sr).Where("sr.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: send result %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return sr, nil
}

// Create inserts a send result. Used by the enqueue path and tests.
func (s *Store) Create(ctx context.Context, sr *model.SendResult) error {
	if sr.StatusID == 0 {
		sr.StatusID = s.status.waiting
	}
	if sr.RequestedAt.IsZero() {
		sr.RequestedAt = time.Now()
	}
	_, err := s.db.NewInsert().Model(sr).Exec(ctx)
	return err
}

// Status returns the row's current status symbol, or "" when the row does
// not exist.
func (s *Store) Status(ctx context.Context, id int64) (string, error) {
	sr, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return s.lk.Symbol(sr.StatusID), nil
}

// Template loads a message template by id.
func (s *Store) Template(ctx context.Context, id int64) (*model.MessageTemplate, error) {
	mt := new(model.MessageTemplate)
	err := s.db.NewSelect().Model(mt).Where("mt.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: template %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return mt, nil
}

// StatusSymbol maps a status id back to its symbol for logging and decisions.
func (s *Store) StatusSymbol(id int64) string { return s.lk.Symbol(id) }

// ChannelSymbol maps a channel id back to its symbol.
func (s *Store) ChannelSymbol(id int64) string { return s.lk.Symbol(id) }
