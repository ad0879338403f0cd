package notify

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/cloudsend/types"
)

type captureHub struct {
	mu    sync.Mutex
	items []*types.Notification
}

func (h *captureHub) Broadcast(n *types.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, n)
}

func withHub(t *testing.T) *captureHub {
	t.Helper()
	h := &captureHub{}
	SetHub(h)
	prevUse := UseNotify
	SetUseNotify(false)
	t.Cleanup(func() {
		SetHub(nil)
		SetUseNotify(prevUse)
	})
	return h
}

func TestSendNotificationOverUnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "notify.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan types.Notification, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lengthBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lengthBuf); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lengthBuf))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var n types.Notification
		_ = sonic.Unmarshal(payload, &n)
		received <- n
		_, _ = conn.Write([]byte(`{"status":"ok"}`))
	}()

	SetUseNotify(true)
	err = SendNotification(&types.Notification{Type: types.NotifyTypeInfo, Title: "hello"}, socketPath)
	require.NoError(t, err)

	n := <-received
	assert.Equal(t, types.NotifyTypeInfo, n.Type)
	assert.Equal(t, "hello", n.Title)
}

func TestSendNotificationListenerError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "notify.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lengthBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lengthBuf); err != nil {
			return
		}
		if _, err := io.CopyN(io.Discard, conn, int64(binary.LittleEndian.Uint32(lengthBuf))); err != nil {
			return
		}
		_, _ = conn.Write([]byte(`{"error":"unknown type"}`))
	}()

	SetUseNotify(true)
	err = SendNotification(&types.Notification{Type: "bogus"}, socketPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestSendNotificationMissingSocket(t *testing.T) {
	SetUseNotify(true)
	err := SendNotification(&types.Notification{Type: types.NotifyTypeInfo}, filepath.Join(t.TempDir(), "absent.sock"))
	assert.Error(t, err)

	SetUseNotify(false)
	defer SetUseNotify(true)
	assert.NoError(t, SendNotification(&types.Notification{Type: types.NotifyTypeInfo}, "/nonexistent.sock"))
}

func TestSendUploadEndTruncates(t *testing.T) {
	hub := withHub(t)

	report := types.AggregateReport{Successes: []types.UploadOutcome{}, Failures: []types.UploadOutcome{}}
	for i := 0; i < 25; i++ {
		report.Failures = append(report.Failures, types.UploadOutcome{
			Kind:         types.OutcomeFailure,
			FileName:     "f" + strconv.Itoa(i),
			RelativePath: "dir/f" + strconv.Itoa(i),
			Reason:       string(make([]byte, 1000)),
		})
	}
	SendUploadEnd("run-1", report)

	require.Len(t, hub.items, 1)
	n := hub.items[0]
	assert.Equal(t, types.NotifyTypeUploadEnd, n.Type)
	assert.Equal(t, "Upload Completed With Errors", n.Title)
	failed := n.Data["failed"].([]map[string]any)
	assert.Len(t, failed, MaxNotifyFilesUploadEnd)
	assert.Len(t, failed[0]["reason"], MaxNotifyReasonLen+3)
	assert.Equal(t, 25, n.Data["failedFiles"])

	payload, err := sonic.Marshal(n)
	require.NoError(t, err)
	assert.Less(t, len(payload), NotifyWriteChunkSize)
}

func TestProgressAndSessionNotifications(t *testing.T) {
	hub := withHub(t)
	assert.True(t, NotifyWSEnabled())

	SendUploadStart("run-2", 3, 1<<20)
	SendSessionState("run-2", types.UploadSession{ID: "s1", TotalChunks: 2, Status: types.SessionFinalizing,
		Entry: types.UploadEntry{RelativePath: "a/b.bin"}})
	SendUploadProgress("run-2", types.UploadOutcome{Kind: types.OutcomeFailure, FileName: "b.bin", Reason: "Upload failed"}, 1, 3)
	SendSessionExpired()

	require.Len(t, hub.items, 4)
	assert.Equal(t, types.NotifyTypeUploadStart, hub.items[0].Type)
	assert.Equal(t, "Uploading 3 files (1.0 MiB)", hub.items[0].Message)
	assert.Equal(t, "finalizing", hub.items[1].Data["status"])
	assert.Equal(t, false, hub.items[2].Data["success"])
	assert.Equal(t, "Upload failed", hub.items[2].Data["reason"])
	assert.Equal(t, types.NotifyTypeSessionExpired, hub.items[3].Type)
}
