package model

import "time"

// RawLine is the intermediate type produced by sources and consumed by the
// engine. It is ephemeral: once parsed into an Event it is discarded.
type RawLine struct {
	Origin  string    // origin id (file stem, container name, "stdin", ...)
	Service string    // service override; defaults to Origin when empty
	Seq     uint64    // per-run monotonic sequence, breaks timestamp ties
	Text    string    // raw line content, no trailing newline
	Arrival time.Time // best-effort arrival time, used when no timestamp parses
}
