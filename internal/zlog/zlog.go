// Package zlog is the pluggable warning sink described in spec.md §7:
// ObjectIdMismatch and SchemaCacheError are logged here rather than
// aborting the call. Mirrors the teacher's use of the standard log
// package for non-fatal conditions in internal/graph/arena_writer.go.
package zlog

import "log"

// Sink receives non-fatal warnings (ObjectIdMismatch, SchemaCacheError,
// arena-flush failures). Default is the standard logger; tests can
// install a capturing Sink via SetSink.
type Sink interface {
	Warnf(format string, args ...any)
}

type stdSink struct{}

func (stdSink) Warnf(format string, args ...any) { log.Printf("zarrio: "+format, args...) }

var current Sink = stdSink{}

// SetSink installs a custom warning sink (e.g. to capture warnings in
// tests instead of writing to the process log).
func SetSink(s Sink) {
	if s == nil {
		s = stdSink{}
	}
	current = s
}

// Warnf routes a warning to the installed sink.
func Warnf(format string, args ...any) { current.Warnf(format, args...) }
