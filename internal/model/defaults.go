package model

import "time"

// Shared defaults used by the command and by packages that accept zero configs.
const (
	DefaultServiceName = "quilibrium"
	DefaultRPCHost     = "127.0.0.1"
	DefaultRPCPort     = 8338
	DefaultRPCTimeout  = 10 * time.Second
	DefaultExecTimeout = 30 * time.Second
	DefaultLogWindow   = time.Hour
	DefaultLogTimeout  = 20 * time.Second
	DefaultLogBuffer   = 200_000
)
