package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config is the declarative logger configuration.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text|json
	// Output is "console" (default) or "null".
	Output string `json:"output"`
	// Redact lists field keys replaced by "[REDACTED]".
	Redact []string `json:"redact"`
	// SampleInitial/SampleThereafter enable per-message sampling when
	// SampleThereafter > 0.
	SampleInitial    int `json:"sampleInitial"`
	SampleThereafter int `json:"sampleThereafter"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var out Output
	switch strings.ToLower(cfg.Output) {
	case "", "console", "stderr":
		out = NewConsoleOutput()
	case "null", "none":
		out = &NullOutput{}
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	l := NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(out)).(*BaseLogger)
	h := l.handler.withRedactions(cfg.Redact).withSampler(cfg.SampleInitial, cfg.SampleThereafter)
	h.logger = l
	l.handler = h
	return l, nil
}

// stdWriter adapts the std log package to a Logger at info level.
type stdWriter struct{ l Logger }

func (w stdWriter) Write(p []byte) (int, error) {
	w.l.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that writes through l.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l}, "", 0)
}

// RedirectStdLog routes the standard library's default logger (used by
// Pebble and net/http) through l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{l: l.WithComponent("stdlog")})
}
