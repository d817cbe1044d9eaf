package model

import "time"

// ExportEnvelope is the payload published to the exports Kafka topic.
type ExportEnvelope struct {
	Request    ExportRequest `json:"request"`
	Attempt    int           `json:"attempt"` // 0-based
	EnqueuedAt time.Time     `json:"enqueued_at"`
}
