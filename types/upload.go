package types

import (
	"io"
	"strings"
)

// UploadEntry is one file plus the path it should have under the target folder.
// Produced by the filesystem walker; never modified afterwards.
type UploadEntry struct {
	Content      io.ReaderAt
	RelativePath string // forward slashes, e.g. "docs/2024/report.pdf"
	SizeBytes    int64
}

// FileName returns the base name of the entry, the name the remote store registers.
func (e UploadEntry) FileName() string {
	if i := strings.LastIndex(e.RelativePath, "/"); i >= 0 {
		return e.RelativePath[i+1:]
	}
	return e.RelativePath
}

type SessionStatus int

const (
	SessionPending SessionStatus = iota
	SessionChunkingInFlight
	SessionFinalizing
	SessionSucceeded
	SessionFailed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionChunkingInFlight:
		return "chunking"
	case SessionFinalizing:
		return "finalizing"
	case SessionSucceeded:
		return "succeeded"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionSucceeded || s == SessionFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
// Pending -> ChunkingInFlight -> Finalizing -> Succeeded, and any
// non-terminal state may fail.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionPending:
		return next == SessionChunkingInFlight || next == SessionFailed
	case SessionChunkingInFlight:
		return next == SessionFinalizing || next == SessionFailed
	case SessionFinalizing:
		return next == SessionSucceeded || next == SessionFailed
	default:
		return false
	}
}

// UploadSession is the chunked-transfer state of one large entry.
type UploadSession struct {
	ID             string
	Entry          UploadEntry
	ChunkSizeBytes int64
	TotalChunks    int
	ParentFolderID string // empty means the caller's root folder
	Status         SessionStatus
}

// ChunkTask is one contiguous byte range [Start, End) of a session's entry.
type ChunkTask struct {
	SessionID string
	Index     int
	Start     int64
	End       int64
}

// Len returns the number of bytes covered by the task.
func (t ChunkTask) Len() int64 {
	return t.End - t.Start
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
)

// UploadOutcome is the settled result of exactly one UploadEntry.
// Success outcomes carry Descriptor; failure outcomes carry Reason.
type UploadOutcome struct {
	Kind         OutcomeKind     `json:"-"`
	RelativePath string          `json:"relativePath"`
	FileName     string          `json:"fileName"`
	Descriptor   *FileDescriptor `json:"descriptor,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// SuccessOutcome builds the success variant for an entry.
func SuccessOutcome(entry UploadEntry, descriptor FileDescriptor) UploadOutcome {
	if descriptor.FileName == "" {
		descriptor.FileName = entry.FileName()
	}
	return UploadOutcome{
		Kind:         OutcomeSuccess,
		RelativePath: entry.RelativePath,
		FileName:     entry.FileName(),
		Descriptor:   &descriptor,
	}
}

// FailureOutcome builds the failure variant for an entry.
func FailureOutcome(entry UploadEntry, reason string) UploadOutcome {
	return UploadOutcome{
		Kind:         OutcomeFailure,
		RelativePath: entry.RelativePath,
		FileName:     entry.FileName(),
		Reason:       reason,
	}
}

func (o UploadOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// AggregateReport is the consolidated result of one upload call.
// len(Successes)+len(Failures) always equals the number of input entries.
type AggregateReport struct {
	Successes []UploadOutcome `json:"successes"`
	Failures  []UploadOutcome `json:"failures"`
	Cancelled bool            `json:"cancelled,omitempty"`
}

func (r AggregateReport) Total() int {
	return len(r.Successes) + len(r.Failures)
}

// FailedFileNames lists the names of the files that need to be retried.
func (r AggregateReport) FailedFileNames() []string {
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.FileName)
	}
	return names
}

// Role is the caller class as reported by the remote store.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

// Caller identifies who an upload runs for. It is passed into every upload
// call instead of being read from shared session state.
type Caller struct {
	UserID string
	Name   string
	Role   Role
}

// CanUpload reports whether the caller class may write to the store.
func (c Caller) CanUpload() bool {
	return c.Role != RoleGuest
}
