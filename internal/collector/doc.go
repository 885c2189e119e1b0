// Package collector is the receiving end of the upload pipeline. It accepts
// one raw log file per TCP connection, stores it under a random upload ID,
// optionally zstd-compressed, and records it in a SQL index (SQLite,
// PostgreSQL or MySQL).
package collector
