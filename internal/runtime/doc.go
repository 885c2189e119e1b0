// Package runtime wires the event log for a single process: the ring
// buffer, its Pebble checkpoint, the log file store and the upload
// pipeline.
//
// Example:
//
//	cfg := config.Default()
//	cfg.LogDir = "/var/log/ringlog"
//	cfg.Upload.ServerURL = "collector.local:5060"
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	rt.Log(events.User0, 1)
//	_, _ = rt.Drain()
//	_ = rt.StartUpload(context.Background())
package runtime
