// Package collectorrun backs the `ringlog collector` commands: serving
// uploads and listing the upload index.
package collectorrun
