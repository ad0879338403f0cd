package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

// NotifyWriteChunkSize is the chunk size when writing payload to Unix socket (avoid large single write).
const NotifyWriteChunkSize = 32 * 1024 // 32KB

// upload_end carries at most this many failed entries to keep payload under 32KB.
const MaxNotifyFilesUploadEnd = 10
const MaxNotifyPathLen = 256
const MaxNotifyReasonLen = 256

var (
	// DefaultUnixSocketPath is the default Unix socket path for IPC
	DefaultUnixSocketPath = "/tmp/cloudsend-notify.sock"
	// UnixSocketTimeout is the timeout for Unix socket operations
	UnixSocketTimeout = 3 * time.Second
	UseNotify         = true

	hubMu sync.RWMutex
	hub   types.NotifyHub
)

// SetUseNotify sets whether to use the Unix socket.
func SetUseNotify(use bool) {
	UseNotify = use
}

// SetSocketPath overrides DefaultUnixSocketPath when path is not empty.
func SetSocketPath(path string) {
	if path != "" {
		DefaultUnixSocketPath = path
	}
}

// SetHub sets the WebSocket hub every notification is broadcast to. nil disables it.
func SetHub(h types.NotifyHub) {
	hubMu.Lock()
	defer hubMu.Unlock()
	hub = h
}

// NotifyWSEnabled reports whether a WebSocket hub is attached.
func NotifyWSEnabled() bool {
	hubMu.RLock()
	defer hubMu.RUnlock()
	return hub != nil
}

// Publish broadcasts notification to the hub and writes it to the Unix socket.
// Socket errors are logged only; nobody listening is a normal condition.
func Publish(notification *types.Notification) {
	hubMu.RLock()
	h := hub
	hubMu.RUnlock()
	if h != nil {
		h.Broadcast(notification)
	}
	if err := SendNotification(notification, DefaultUnixSocketPath); err != nil {
		tool.DefaultLogger.Debugf("[Notify] %v", err)
	}
}

// SendNotification sends notification via Unix Domain Socket
func SendNotification(notification *types.Notification, socketPath string) error {
	if !UseNotify {
		return nil
	}
	if socketPath == "" {
		socketPath = DefaultUnixSocketPath
	}

	// Check if socket file exists
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return fmt.Errorf("unix socket not found: %s", socketPath)
	}

	// Serialize notification data to JSON
	var payload []byte
	var err error
	if notification != nil {
		payload, err = sonic.Marshal(notification)
		if err != nil {
			return fmt.Errorf("failed to serialize notification data: %v", err)
		}
	} else {
		payload = []byte("{}")
	}

	// Reject payload over 32KB
	if len(payload) > NotifyWriteChunkSize {
		return fmt.Errorf("notification payload too large: %d bytes (max %d)", len(payload), NotifyWriteChunkSize)
	}

	// Connect to Unix socket
	conn, err := net.DialTimeout("unix", socketPath, UnixSocketTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to Unix socket %s: %v", socketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close Unix socket connection: %v", err)
		}
	}()

	// Set write deadline
	if err := conn.SetWriteDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set write deadline: %v", err)
	}

	// Send length prefix (4 bytes, little-endian uint32) then payload in chunks
	lengthBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return fmt.Errorf("failed to write length to Unix socket: %v", err)
	}
	for off := 0; off < len(payload); {
		chunkEnd := min(off+NotifyWriteChunkSize, len(payload))
		nw, err := conn.Write(payload[off:chunkEnd])
		if err != nil {
			return fmt.Errorf("failed to write payload to Unix socket: %v", err)
		}
		off += nw
	}

	// Set read deadline
	if err := conn.SetReadDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set read deadline: %v", err)
	}

	// Read response
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response from Unix socket: %v", err)
	}
	// Parse response, the listener answers {"error": ...} on rejection
	if n > 0 {
		var response map[string]any
		if err := sonic.Unmarshal(buf[:n], &response); err != nil {
			tool.DefaultLogger.Debugf("Unix socket response (raw): %s", string(buf[:n]))
		} else if errMsg, ok := response["error"].(string); ok && errMsg != "" {
			return fmt.Errorf("server returned error: %s", errMsg)
		}
	}

	if notification != nil {
		tool.DefaultLogger.Debugf("[UnixSocket] Notification sent: %s - %s", notification.Type, notification.Title)
	}
	return nil
}

// SendUploadStart announces a run before any request is made.
func SendUploadStart(runID string, totalFiles int, totalBytes int64) {
	Publish(&types.Notification{
		Type:    types.NotifyTypeUploadStart,
		Title:   "Upload Started",
		Message: fmt.Sprintf("Uploading %d files (%s)", totalFiles, tool.HumanBytes(totalBytes)),
		Data: map[string]any{
			"runId":      runID,
			"totalFiles": totalFiles,
			"totalBytes": totalBytes,
		},
	})
}

// SendUploadProgress reports one settled entry.
func SendUploadProgress(runID string, outcome types.UploadOutcome, settled, total int) {
	data := map[string]any{
		"runId":        runID,
		"settledFiles": settled,
		"totalFiles":   total,
		"fileName":     outcome.FileName,
		"relativePath": truncate(outcome.RelativePath, MaxNotifyPathLen),
		"success":      outcome.Succeeded(),
	}
	if !outcome.Succeeded() {
		data["reason"] = truncate(outcome.Reason, MaxNotifyReasonLen)
	}
	Publish(&types.Notification{
		Type:  types.NotifyTypeUploadProgress,
		Title: "Uploading",
		Data:  data,
	})
}

// SendSessionState reports a chunk session status change.
func SendSessionState(runID string, session types.UploadSession) {
	Publish(&types.Notification{
		Type: types.NotifyTypeSessionState,
		Data: map[string]any{
			"runId":        runID,
			"sessionId":    session.ID,
			"relativePath": truncate(session.Entry.RelativePath, MaxNotifyPathLen),
			"totalChunks":  session.TotalChunks,
			"status":       session.Status.String(),
		},
	})
}

// SendUploadEnd reports the consolidated result of a run. The failure list
// is truncated to MaxNotifyFilesUploadEnd entries.
func SendUploadEnd(runID string, report types.AggregateReport) {
	failed := make([]map[string]any, 0, min(len(report.Failures), MaxNotifyFilesUploadEnd))
	for _, f := range report.Failures {
		if len(failed) >= MaxNotifyFilesUploadEnd {
			break
		}
		failed = append(failed, map[string]any{
			"fileName":     f.FileName,
			"relativePath": truncate(f.RelativePath, MaxNotifyPathLen),
			"reason":       truncate(f.Reason, MaxNotifyReasonLen),
		})
	}

	title := "Upload Completed"
	switch {
	case report.Cancelled:
		title = "Upload Cancelled"
	case len(report.Failures) > 0:
		title = "Upload Completed With Errors"
	}
	Publish(&types.Notification{
		Type:    types.NotifyTypeUploadEnd,
		Title:   title,
		Message: fmt.Sprintf("%d of %d files uploaded", len(report.Successes), report.Total()),
		Data: map[string]any{
			"runId":        runID,
			"successFiles": len(report.Successes),
			"failedFiles":  len(report.Failures),
			"totalFiles":   report.Total(),
			"cancelled":    report.Cancelled,
			"failed":       failed,
		},
	})
}

// SendSessionExpired tells the local UI that the store rejected the token.
func SendSessionExpired() {
	Publish(&types.Notification{
		Type:    types.NotifyTypeSessionExpired,
		Title:   "Session Expired",
		Message: "The remote store rejected the access token, please log in again",
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
