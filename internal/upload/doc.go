// Package upload ships completed log files to a remote collector.
//
// A run enumerates the log directory, skipping the file currently being
// written, resolves the collector once and then, from a background
// goroutine, sends each file over its own TCP connection as a raw byte
// stream in 240-byte chunks. The collector sends nothing back. A file that
// was read to EOF and written without error is deleted. A failed send ends
// the run and leaves that file and the rest for the next run; a failed
// connect only skips the file.
package upload
