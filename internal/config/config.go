package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the engine tunables. Thresholds are configuration, not
// hardcoded constants.
type Config struct {
	DataDir             string
	Workers             int
	TickPeriod          time.Duration
	HeartbeatTimeout    time.Duration
	MaxFailures         int
	StuckThreshold      time.Duration
	DispatchPeriod      time.Duration
	CheckpointInterval  time.Duration
	CheckpointRetention int
}

// Load reads configuration from the environment, honoring a .env file when
// present.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		DataDir:             envString("OYA_DATA_DIR", "data"),
		Workers:             envInt("OYA_WORKERS", 4),
		TickPeriod:          envDuration("OYA_TICK_PERIOD", time.Second),
		HeartbeatTimeout:    envDuration("OYA_HEARTBEAT_TIMEOUT", 3*time.Second),
		MaxFailures:         envInt("OYA_MAX_FAILURES", 3),
		StuckThreshold:      envDuration("OYA_STUCK_THRESHOLD", 30*time.Second),
		DispatchPeriod:      envDuration("OYA_DISPATCH_PERIOD", 200*time.Millisecond),
		CheckpointInterval:  envDuration("OYA_CHECKPOINT_INTERVAL", 30*time.Second),
		CheckpointRetention: envInt("OYA_CHECKPOINT_RETENTION", 5),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
