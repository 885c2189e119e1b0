// Package inspect renders log files offline for `ringlog dump`, plain or
// as stored by the collector.
package inspect
