package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays COURIER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDur := func(key string, dst *Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}

	setStr("COURIER_DATA_DIR", &cfg.DataDir)
	setStr("COURIER_DB_DRIVER", &cfg.DB.Driver)
	setStr("COURIER_DB_DSN", &cfg.DB.DSN)
	setStr("COURIER_LOG_LEVEL", &cfg.Log.Level)
	setStr("COURIER_LOG_FORMAT", &cfg.Log.Format)

	setStr("COURIER_STREAM_KEY", &cfg.Stream.Key)
	setStr("COURIER_STREAM_GROUP", &cfg.Stream.Group)
	setStr("COURIER_STREAM_CONSUMER_PREFIX", &cfg.Stream.ConsumerPrefix)
	setInt("COURIER_STREAM_BATCH", &cfg.Stream.Batch)
	setDur("COURIER_STREAM_POLL_INTERVAL", &cfg.Stream.PollInterval)

	setInt("COURIER_WORKER_THREADS", &cfg.Worker.Threads)
	setInt("COURIER_WORKER_QUEUE_CAPACITY", &cfg.Worker.QueueCapacity)

	setInt("COURIER_EMAIL_MAX_RETRY", &cfg.Email.MaxRetry)
	setDur("COURIER_EMAIL_CONFIRM_DELAY", &cfg.Email.ConfirmDelay)
	setInt("COURIER_EMAIL_FINALIZER_POOL", &cfg.Email.FinalizerPool)
	setInt("COURIER_EMAIL_FAILURE_PERCENT", &cfg.Email.FailurePercent)

	setDur("COURIER_SWEEP_PERIOD", &cfg.Sweep.Period)
	setDur("COURIER_SWEEP_IDLE_TIMEOUT", &cfg.Sweep.IdleTimeout)
	setInt("COURIER_SWEEP_CLAIM_COUNT", &cfg.Sweep.ClaimCount)
	setInt("COURIER_SWEEP_DB_BATCH_SIZE", &cfg.Sweep.DBBatchSize)
}
