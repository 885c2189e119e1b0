// Package config holds the agent and collector settings. Sources are
// layered: Default(), then a JSON file via Load, then RINGLOG_* variables
// via FromEnv, then command-line flags.
//
//	cfg, err := config.Load("/etc/ringlog.json")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, err := runtime.Open(runtime.Options{Config: cfg})
//
// Durations accept "10s" strings or integer milliseconds.
package config
