package model

import (
	"fmt"
	"time"
)

type ExportState string

const (
	ExportSuccess ExportState = "success"
	ExportFailed  ExportState = "failed"
	// ExportPending is never stored; the API reports it while no status exists yet.
	ExportPending ExportState = "pending"
)

func (s ExportState) String() string { return string(s) }

// ExportRequest is what a caller submits; the job consumes it once.
type ExportRequest struct {
	RequesterID int64             `json:"requester_id"`
	Params      map[string]string `json:"params,omitempty"`
	ExportID    string            `json:"export_id"`
}

// ExportStatus is the polled outcome stored under ExportStatusKey.
type ExportStatus struct {
	Status  ExportState `json:"status"`
	URL     string      `json:"url,omitempty"`
	Message string      `json:"message,omitempty"`
}

func ExportSucceeded(url string) ExportStatus {
	return ExportStatus{Status: ExportSuccess, URL: url}
}

func ExportFailedWith(err error) ExportStatus {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ExportStatus{Status: ExportFailed, Message: msg}
}

// ExportStatusKey is export:{requesterId}:{exportId}.
func ExportStatusKey(requesterID int64, exportID string) string {
	return fmt.Sprintf("export:%d:%s", requesterID, exportID)
}

// ExportRun is one finished export as kept in ClickHouse history.
type ExportRun struct {
	ExportID    string      `db:"export_id"    json:"export_id"`
	RequesterID int64       `db:"requester_id" json:"requester_id"`
	Status      ExportState `db:"status"       json:"status"`
	URL         string      `db:"url"          json:"url,omitempty"`
	Message     string      `db:"message"      json:"message,omitempty"`
	Rows        uint64      `db:"rows"         json:"rows"`
	Attempts    uint32      `db:"attempts"     json:"attempts"`
	DurationMs  uint64      `db:"duration_ms"  json:"duration_ms"`
	FinishedAt  time.Time   `db:"finished_at"  json:"finished_at"`
}
