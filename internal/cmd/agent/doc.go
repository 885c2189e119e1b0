// Package agentrun is the long-running agent behind `ringlog agent start`:
// the log runtime plus its periodic drain, upload and checkpoint loops and
// the diagnostics HTTP API.
//
// Example:
//
//	cfg := config.Default()
//	cfg.LogDir = "/var/log/ringlog"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = agentrun.Run(ctx, agentrun.Options{Config: cfg, Logger: logger})
package agentrun
