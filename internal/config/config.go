package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rzbill/ringlog/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Capacity is the number of record slots in the ring buffer.
	Capacity int `json:"capacity"`
	// LogDir is where log files are created and uploaded from. Empty
	// disables file logging.
	LogDir string `json:"logDir"`
	// MaxPathLen bounds the length of LogDir.
	MaxPathLen int `json:"maxPathLen"`
	// FlushEvery is the number of drain cycles between forced flushes.
	FlushEvery int `json:"flushEvery"`
	// Strict makes the best-effort writer take the store lock as well.
	Strict bool `json:"strict"`
	// Print echoes every appended record to stdout as a text line.
	Print bool `json:"print"`
	// PrintOnly echoes records without storing them in the ring.
	PrintOnly bool `json:"printOnly"`
	// EventsFile optionally names a JSON file of application event names.
	EventsFile string `json:"eventsFile"`

	DrainInterval  Duration `json:"drainInterval"`
	UploadInterval Duration `json:"uploadInterval"`

	// DataDir holds the Pebble database the ring buffer is checkpointed
	// to. Empty keeps the buffer in memory only.
	DataDir string `json:"dataDir"`
	// Fsync is "always", "interval" or "never".
	Fsync string `json:"fsync"`
	// Region names the checkpointed buffer inside DataDir.
	Region string `json:"region"`
	// CheckpointInterval is how often the agent checkpoints the buffer.
	CheckpointInterval Duration `json:"checkpointInterval"`
	// HTTPAddr serves the diagnostics API. Empty disables it.
	HTTPAddr string `json:"httpAddr"`

	Log log.Config `json:"log"`

	Upload    Upload    `json:"upload"`
	Collector Collector `json:"collector"`
}

// Upload configures the upload pipeline.
type Upload struct {
	// ServerURL is host[:port] of the collector. Empty disables uploads.
	ServerURL      string   `json:"serverURL"`
	DefaultPort    int      `json:"defaultPort"`
	SendTimeout    Duration `json:"sendTimeout"`
	ConnectTimeout Duration `json:"connectTimeout"`
}

// Collector configures the receiving side.
type Collector struct {
	Addr        string `json:"addr"`
	Dir         string `json:"dir"`
	Compress    bool   `json:"compress"`
	IndexDriver string `json:"indexDriver"`
	IndexDSN    string `json:"indexDSN"`
}

// Duration is a time.Duration that unmarshals from "10s" style strings or
// integer milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return errors.New("duration must be a string like \"10s\" or integer milliseconds")
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Capacity:           500,
		MaxPathLen:         240,
		FlushEvery:         1,
		DrainInterval:      Duration(time.Second),
		UploadInterval:     Duration(5 * time.Minute),
		Fsync:              "always",
		Region:             "main",
		CheckpointInterval: Duration(10 * time.Second),
		HTTPAddr:           "127.0.0.1:5061",
		Log:                log.Config{Level: "info", Format: "text"},
		Upload: Upload{
			DefaultPort:    5060,
			SendTimeout:    Duration(10 * time.Second),
			ConnectTimeout: Duration(10 * time.Second),
		},
		Collector: Collector{
			Addr:        ":5060",
			Compress:    true,
			IndexDriver: "sqlite",
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail later in obscure ways.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return errors.New("capacity must be at least 1")
	}
	if c.FlushEvery < 1 {
		return errors.New("flushEvery must be at least 1")
	}
	if c.MaxPathLen < 1 {
		return errors.New("maxPathLen must be positive")
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("unknown fsync mode %q", c.Fsync)
	}
	if c.DataDir != "" && c.Region == "" {
		return errors.New("region name required with dataDir")
	}
	return nil
}
