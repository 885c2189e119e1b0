// Package filestore persists the ring buffer to append-only log files and
// prints diagnostic dumps of file and memory content.
//
// Files live in one directory and are named 0000.log to 0999.log; Open
// takes the first free name. Each file is a raw sequence of 12-byte records
// with no header. Drain never blocks: if the store is busy the cycle is
// skipped and the records wait for the next one.
package filestore
