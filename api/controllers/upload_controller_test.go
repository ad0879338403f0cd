package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/cloudsend/api/middlewares"
	"github.com/moyoez/cloudsend/api/models"
	"github.com/moyoez/cloudsend/types"
	"github.com/moyoez/cloudsend/uploader"
)

// stubTransport accepts everything; when block is set every request waits
// for cancellation.
type stubTransport struct {
	block bool
}

func (s stubTransport) wait(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s stubTransport) UploadChunk(ctx context.Context, _ types.ChunkUpload) error {
	return s.wait(ctx)
}

func (s stubTransport) FinalizeUpload(ctx context.Context, req types.FinalizeRequest) (types.FileDescriptor, error) {
	if err := s.wait(ctx); err != nil {
		return types.FileDescriptor{}, err
	}
	return types.FileDescriptor{ID: "f-" + req.SessionID, FileName: req.FileName}, nil
}

func (s stubTransport) UploadBatch(ctx context.Context, batch types.BatchUpload) (types.BatchResponse, error) {
	if err := s.wait(ctx); err != nil {
		return types.BatchResponse{}, err
	}
	var resp types.BatchResponse
	for _, f := range batch.Files {
		resp.SuccessfulUploads = append(resp.SuccessfulUploads, types.FileDescriptor{ID: "b-" + f.FileName, FileName: f.FileName})
	}
	return resp, nil
}

type runResponse struct {
	Data         types.UploadRun `json:"data"`
	SuccessFiles int             `json:"successFiles"`
	FailedFiles  int             `json:"failedFiles"`
	Error        string          `json:"error"`
}

// setupRouter creates a test router with the upload endpoints
func setupRouter(t *testing.T, transport uploader.Transport) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := uploader.New(transport, uploader.Options{ChunkSizeBytes: 16})
	require.NoError(t, err)
	models.SetUploadEngine(engine)
	models.SetCaller(types.Caller{UserID: "1", Name: "alice", Role: types.RoleUser})
	t.Cleanup(func() {
		models.SetUploadEngine(nil)
		models.ClearCaller()
	})

	router := gin.New()
	self := router.Group("/api/self/v1")
	{
		self.POST("/upload", UserUpload)
		self.GET("/runs/:runId", UserGetRun)
		self.POST("/cancel", UserCancelUpload)
		self.GET("/status", UserStatus)
	}
	return router
}

// setupTestFolder creates docs/small.txt and docs/sub/big.bin
func setupTestFolder(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "small.txt"), []byte("tiny"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "big.bin"), bytes.Repeat([]byte("x"), 100), 0o644))
	return root
}

func postUpload(t *testing.T, router *gin.Engine, body any) (*httptest.ResponseRecorder, runResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/self/v1/upload", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp runResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func getRun(t *testing.T, router *gin.Engine, runID string) (int, runResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/self/v1/runs/"+runID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp runResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func TestUserUploadWait(t *testing.T) {
	router := setupRouter(t, stubTransport{})
	root := setupTestFolder(t)

	w, resp := postUpload(t, router, types.UserUploadRequest{Paths: []string{root}, ParentFolderID: "p1", Wait: true})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.RunFinished, resp.Data.State)
	assert.Equal(t, 2, resp.Data.TotalEntries)
	assert.Equal(t, int64(104), resp.Data.TotalBytes)
	assert.Equal(t, 2, resp.SuccessFiles)
	assert.Equal(t, 0, resp.FailedFiles)
	require.NotNil(t, resp.Data.Report)
	assert.Equal(t, "docs/small.txt", resp.Data.Report.Successes[0].RelativePath)
	assert.Equal(t, "docs/sub/big.bin", resp.Data.Report.Successes[1].RelativePath)
	assert.NotNil(t, resp.Data.FinishedAt)
}

func TestUserUploadAsync(t *testing.T) {
	router := setupRouter(t, stubTransport{})
	root := setupTestFolder(t)

	w, resp := postUpload(t, router, types.UserUploadRequest{Paths: []string{filepath.Join(root, "small.txt")}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	runID := resp.Data.ID
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		code, run := getRun(t, router, runID)
		return code == http.StatusOK && run.Data.State == types.RunFinished
	}, 5*time.Second, 10*time.Millisecond)

	_, run := getRun(t, router, runID)
	assert.Equal(t, 1, run.SuccessFiles)
	assert.Equal(t, "small.txt", run.Data.Report.Successes[0].RelativePath)
}

func TestUserCancelUpload(t *testing.T) {
	router := setupRouter(t, stubTransport{block: true})
	root := setupTestFolder(t)

	w, resp := postUpload(t, router, types.UserUploadRequest{Paths: []string{root}})
	require.Equal(t, http.StatusAccepted, w.Code)
	runID := resp.Data.ID

	req := httptest.NewRequest(http.MethodPost, "/api/self/v1/cancel?runId="+runID, nil)
	cw := httptest.NewRecorder()
	router.ServeHTTP(cw, req)
	assert.Equal(t, http.StatusOK, cw.Code, cw.Body.String())

	require.Eventually(t, func() bool {
		_, run := getRun(t, router, runID)
		return run.Data.State == types.RunCancelled
	}, 5*time.Second, 10*time.Millisecond)

	_, run := getRun(t, router, runID)
	assert.Equal(t, 0, run.SuccessFiles)
	assert.Equal(t, 2, run.FailedFiles)
	assert.True(t, run.Data.Report.Cancelled)

	// A finished run cannot be cancelled again.
	cw = httptest.NewRecorder()
	router.ServeHTTP(cw, httptest.NewRequest(http.MethodPost, "/api/self/v1/cancel?runId="+runID, nil))
	assert.Equal(t, http.StatusConflict, cw.Code)
}

func TestUserUploadRejections(t *testing.T) {
	router := setupRouter(t, stubTransport{})
	root := setupTestFolder(t)

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/self/v1/upload", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no paths", func(t *testing.T) {
		w, _ := postUpload(t, router, types.UserUploadRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing path", func(t *testing.T) {
		w, resp := postUpload(t, router, types.UserUploadRequest{Paths: []string{filepath.Join(root, "absent")}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, resp.Error, "Failed to collect files")
	})

	t.Run("guest", func(t *testing.T) {
		models.SetCaller(types.Caller{Name: "visitor", Role: types.RoleGuest})
		defer models.SetCaller(types.Caller{UserID: "1", Name: "alice", Role: types.RoleUser})
		w, _ := postUpload(t, router, types.UserUploadRequest{Paths: []string{root}})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("not logged in", func(t *testing.T) {
		models.ClearCaller()
		defer models.SetCaller(types.Caller{UserID: "1", Name: "alice", Role: types.RoleUser})
		w, _ := postUpload(t, router, types.UserUploadRequest{Paths: []string{root}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		code, _ := getRun(t, router, "nope")
		assert.Equal(t, http.StatusNotFound, code)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/self/v1/cancel?runId=nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUserStatus(t *testing.T) {
	router := setupRouter(t, stubTransport{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/self/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["running"])
	assert.Equal(t, true, resp["logged_in"])
	assert.Equal(t, "alice", resp["user"])
}

func TestOnlyAllowLocal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", middlewares.OnlyAllowLocal, func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	local := httptest.NewRequest(http.MethodGet, "/ping", nil)
	local.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, local)
	assert.Equal(t, http.StatusOK, w.Code)

	remote := httptest.NewRequest(http.MethodGet, "/ping", nil)
	remote.RemoteAddr = "192.0.2.10:40000"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, remote)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "pong")
}
