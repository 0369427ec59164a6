package model

import "time"

// LogLine carries one raw node log line with source metadata.
// It is the transport contract between streaming line sources and the log buffer.
type LogLine struct {
	Source   string
	Received time.Time
	Line     string
}
