package types

import (
	"context"
	"time"
)

// UserUploadRequest is the body of POST /api/self/v1/upload.
type UserUploadRequest struct {
	Paths          []string `json:"paths"`
	ParentFolderID string   `json:"parentFolderId,omitempty"`
	Wait           bool     `json:"wait,omitempty"`
}

type RunState string

const (
	RunRunning   RunState = "running"
	RunFinished  RunState = "finished"
	RunCancelled RunState = "cancelled"
)

// UploadRun is one upload call started through the local API.
type UploadRun struct {
	ID             string           `json:"runId"`
	State          RunState         `json:"state"`
	TotalEntries   int              `json:"totalEntries"`
	TotalBytes     int64            `json:"totalBytes"`
	ParentFolderID string           `json:"parentFolderId,omitempty"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     *time.Time       `json:"finishedAt,omitempty"`
	Report         *AggregateReport `json:"report,omitempty"`
}

// UploadRunContext keeps the cancel function of a running upload.
type UploadRunContext struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}
