package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Worker.Threads != 20 || cfg.Worker.QueueCapacity != 2000 {
		t.Fatalf("worker defaults: %+v", cfg.Worker)
	}
	if cfg.Email.MaxRetry != 2 || cfg.Email.ConfirmDelay.Std() != time.Second {
		t.Fatalf("email defaults: %+v", cfg.Email)
	}
	if cfg.Sweep.Period.Std() != 5*time.Minute || cfg.Sweep.IdleTimeout.Std() != 60*time.Minute {
		t.Fatalf("sweep defaults: %+v", cfg.Sweep)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.json")
	body := `{
		"dataDir": "/var/lib/courier",
		"worker": {"threads": 8, "queueCapacity": 100},
		"sweep": {"period": "1m", "idleTimeout": "30m", "claimCount": 100, "dbBatchSize": 500},
		"email": {"maxRetry": 3, "confirmDelay": "2s", "finalizerPool": 4, "failurePercent": 20}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/courier" || cfg.Worker.Threads != 8 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Sweep.Period.Std() != time.Minute || cfg.Email.ConfirmDelay.Std() != 2*time.Second {
		t.Fatalf("durations not parsed: %+v %+v", cfg.Sweep, cfg.Email)
	}
	// Untouched sections keep their defaults.
	if cfg.Stream.Group != "message-senders" {
		t.Fatalf("default lost: %+v", cfg.Stream)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.json")
	if err := os.WriteFile(path, []byte(`{"sweep": {"period": "soon"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestFromEnvOverlays(t *testing.T) {
	t.Setenv("COURIER_WORKER_THREADS", "4")
	t.Setenv("COURIER_STREAM_GROUP", "senders-staging")
	t.Setenv("COURIER_SWEEP_PERIOD", "30s")
	t.Setenv("COURIER_EMAIL_FAILURE_PERCENT", "0")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.Worker.Threads != 4 {
		t.Fatalf("threads = %d", cfg.Worker.Threads)
	}
	if cfg.Stream.Group != "senders-staging" {
		t.Fatalf("group = %s", cfg.Stream.Group)
	}
	if cfg.Sweep.Period.Std() != 30*time.Second {
		t.Fatalf("period = %v", cfg.Sweep.Period.Std())
	}
	if cfg.Email.FailurePercent != 0 {
		t.Fatalf("failure percent = %d", cfg.Email.FailurePercent)
	}
}
