package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/store/model"
)

// CreateSchema creates the delivery tables if they do not exist. Intended for
// tests and first-run provisioning; production schemas are managed outside
// the worker.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*model.Code)(nil),
		(*model.MessageTemplate)(nil),
		(*model.MessageReservation)(nil),
		(*model.SendResult)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table for %T: %w", m, err)
		}
	}
	return nil
}

// SeedCodes inserts every required group/code pair that is not already
// present, so lookup.Load succeeds against a fresh database.
func SeedCodes(ctx context.Context, db bun.IDB) error {
	want := map[string][]string{
		lookup.GroupSendStatus: {
			lookup.StatusWaiting, lookup.StatusProcessing, lookup.StatusSuccess,
			lookup.StatusFailed, lookup.StatusExceeded,
		},
		lookup.GroupChannel: {lookup.ChannelEmail, lookup.ChannelSMS},
		lookup.GroupPurpose: {lookup.PurposeBilling, lookup.PurposeNotice, lookup.PurposeMarketing},
	}

	var existing []model.Code
	if err := db.NewSelect().Model(&existing).Scan(ctx); err != nil {
		return fmt.Errorf("store: seed codes: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.GroupCode+":"+c.Code] = true
	}

	var missing []model.Code
	for group, codes := range want {
		for _, c := range codes {
			if !have[group+":"+c] {
				missing = append(missing, model.Code{GroupCode: group, Code: c})
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&missing).Exec(ctx); err != nil {
		return fmt.Errorf("store: seed codes: %w", err)
	}
	return nil
}
