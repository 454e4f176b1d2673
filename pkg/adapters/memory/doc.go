// Package memory provides in-process adapters: a snapshot store and a
// recording sink.
package memory
