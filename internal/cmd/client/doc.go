// Package client provides the `ringlog log` and `ringlog upload` commands,
// which talk to a running agent's diagnostics HTTP API.
//
// # Address configuration
//
// The base URL comes from the embedding application via a BaseURLFunc.
// The standalone binary reads RINGLOG_HTTP and defaults to
// http://127.0.0.1:5061.
//
// Usage
//
//	ringlog log count
//	ringlog log list --filter 'name.startsWith("TCP_")' --limit 20
//	ringlog log dump
//	ringlog log drain
//
//	ringlog upload start
//	ringlog upload status
//	ringlog upload stop
package client
