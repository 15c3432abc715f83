package runtime

import (
	"context"
	"strconv"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/courier/internal/config"
	"github.com/rzbill/courier/internal/consume"
	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/store"
	"github.com/rzbill/courier/internal/store/model"
	"github.com/rzbill/courier/pkg/log"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.DB.Driver = "sqlite3"
	cfg.DB.DSN = "file:" + t.TempDir() + "/courier.db"
	cfg.Stream.PollInterval = cfgpkg.Duration(5 * time.Millisecond)
	cfg.Email.ConfirmDelay = cfgpkg.Duration(5 * time.Millisecond)
	cfg.Email.FailurePercent = 0
	return cfg
}

func openTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := testConfig(t)
	ctx := context.Background()

	// Provision before the full runtime: schema plus codes.
	sqldb, err := OpenSQL(cfg.DB)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	if err := store.CreateSchema(ctx, sqldb); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if err := store.SeedCodes(ctx, sqldb); err != nil {
		t.Fatalf("codes: %v", err)
	}
	_ = sqldb.Close()

	rt, err := Open(ctx, Options{Config: cfg, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestRuntimeDeliversEndToEnd(t *testing.T) {
	rt := openTestRuntime(t)
	ctx := context.Background()
	lk := rt.Lookup()

	tmpl := &model.MessageTemplate{
		ChannelID: lk.ChannelID(lookup.ChannelEmail),
		PurposeID: lk.PurposeID(lookup.PurposeNotice),
		Title:     "Welcome",
		Body:      "Hello user {{userId}}",
	}
	if _, err := rt.DB().NewInsert().Model(tmpl).Exec(ctx); err != nil {
		t.Fatalf("template: %v", err)
	}
	sr := &model.SendResult{
		ReservationID: 1,
		UserID:        3,
		TemplateID:    tmpl.ID,
		ChannelID:     lk.ChannelID(lookup.ChannelEmail),
		PurposeID:     lk.PurposeID(lookup.PurposeNotice),
		RequestedAt:   time.Now(),
	}
	if err := rt.Store().Create(ctx, sr); err != nil {
		t.Fatalf("send result: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- rt.Run(runCtx) }()

	if _, err := rt.Stream().Append(ctx, map[string]string{
		consume.FieldSendResultID: strconv.FormatInt(sr.ID, 10),
		consume.FieldChannel:      lookup.ChannelEmail,
		consume.FieldPurpose:      lookup.PurposeNotice,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := rt.Store().Get(ctx, sr.ID)
		if err == nil && lk.Symbol(got.StatusID) == lookup.StatusSuccess {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, err := rt.Store().Get(ctx, sr.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lk.Symbol(got.StatusID) != lookup.StatusSuccess {
		t.Fatalf("status = %s", lk.Symbol(got.StatusID))
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runtime did not shut down")
	}
}

func TestRuntimeHealth(t *testing.T) {
	rt := openTestRuntime(t)
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestRuntimeFailsWithoutCodes(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	// Fresh database with a schema but no codes.
	sqldb, err := OpenSQL(cfg.DB)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	if err := store.CreateSchema(ctx, sqldb); err != nil {
		t.Fatalf("schema: %v", err)
	}
	_ = sqldb.Close()

	if _, err := Open(ctx, Options{Config: cfg, Logger: log.NewNop()}); err == nil {
		t.Fatalf("runtime must refuse to start without code mappings")
	}
}
