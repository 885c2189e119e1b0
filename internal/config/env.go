package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays RINGLOG_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("RINGLOG_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capacity = n
		}
	}
	if v := os.Getenv("RINGLOG_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("RINGLOG_FLUSH_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FlushEvery = n
		}
	}
	if v := os.Getenv("RINGLOG_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Strict = b
		}
	}
	if v := os.Getenv("RINGLOG_PRINT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Print = b
		}
	}
	if v := os.Getenv("RINGLOG_PRINT_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PrintOnly = b
		}
	}
	if v := os.Getenv("RINGLOG_EVENTS_FILE"); v != "" {
		cfg.EventsFile = v
	}
	envDuration("RINGLOG_DRAIN_INTERVAL", &cfg.DrainInterval)
	envDuration("RINGLOG_UPLOAD_INTERVAL", &cfg.UploadInterval)
	if v := os.Getenv("RINGLOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("RINGLOG_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	envDuration("RINGLOG_CHECKPOINT_INTERVAL", &cfg.CheckpointInterval)
	if v, ok := os.LookupEnv("RINGLOG_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("RINGLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RINGLOG_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RINGLOG_SERVER_URL"); v != "" {
		cfg.Upload.ServerURL = v
	}
	if v := os.Getenv("RINGLOG_DEFAULT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.DefaultPort = n
		}
	}
	envDuration("RINGLOG_SEND_TIMEOUT", &cfg.Upload.SendTimeout)
	envDuration("RINGLOG_CONNECT_TIMEOUT", &cfg.Upload.ConnectTimeout)
	if v := os.Getenv("RINGLOG_COLLECTOR_ADDR"); v != "" {
		cfg.Collector.Addr = v
	}
	if v := os.Getenv("RINGLOG_COLLECTOR_DIR"); v != "" {
		cfg.Collector.Dir = v
	}
	if v := os.Getenv("RINGLOG_COLLECTOR_COMPRESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Collector.Compress = b
		}
	}
	if v := os.Getenv("RINGLOG_COLLECTOR_INDEX_DRIVER"); v != "" {
		cfg.Collector.IndexDriver = v
	}
	if v := os.Getenv("RINGLOG_COLLECTOR_INDEX_DSN"); v != "" {
		cfg.Collector.IndexDSN = v
	}
}

func envDuration(key string, dst *Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = Duration(d)
	}
}
