package lookup_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/store"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	if err := store.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestLoadResolvesAllRequiredCodes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := store.SeedCodes(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	lk, err := lookup.Load(ctx, db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id := lk.StatusID(lookup.StatusExceeded)
	if id == 0 {
		t.Fatalf("EXCEEDED not resolved")
	}
	if lk.Symbol(id) != lookup.StatusExceeded {
		t.Fatalf("round trip: %s", lk.Symbol(id))
	}
	if lk.ChannelID(lookup.ChannelSMS) == 0 || lk.PurposeID(lookup.PurposeBilling) == 0 {
		t.Fatalf("channel or purpose not resolved")
	}
}

func TestLoadFailsOnMissingCodes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	// Empty code table: every required mapping is missing.
	_, err := lookup.Load(ctx, db)
	if err == nil {
		t.Fatalf("expected error on empty code table")
	}
	if !strings.Contains(err.Error(), "SEND_STATUS:WAITING") {
		t.Fatalf("error should name missing codes: %v", err)
	}
}
