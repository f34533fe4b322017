// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and DTOs.

package api

import "time"

// ConnStats is a snapshot of per-connection traffic counters.
type ConnStats struct {
	FramesReceived int64
	FramesSent     int64
	BytesReceived  int64
	BytesSent      int64
	DecodeFailures int64
	OpenedAt       time.Time
}
