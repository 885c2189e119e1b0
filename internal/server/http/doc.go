// Package httpserver serves the diagnostics API: health, buffer counters,
// non-consuming record listings with CEL filters, manual drain and upload
// control.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, "127.0.0.1:5061")
package httpserver
