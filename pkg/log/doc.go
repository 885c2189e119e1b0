// Package log provides ringlog's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by log/slog via
// a bridge handler that feeds our formatter and outputs, so operational
// logging stays consistent across the agent, the upload pipeline and the
// collector.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("upload"))
//	l.Info("upload starting", log.Int("files", 3))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (text or JSON,
// console or null output, key redaction and sampling).
//
// # Interop
//
// ToStdLogger and RedirectStdLog route the standard library logger (used by
// Pebble) through a Logger.
package log
