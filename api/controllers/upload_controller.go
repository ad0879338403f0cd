package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/cloudsend/api/models"
	"github.com/moyoez/cloudsend/notify"
	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
	"github.com/moyoez/cloudsend/uploader"
)

// runObserver forwards engine progress of one run to notifications.
type runObserver struct {
	runID string
}

func (o runObserver) SessionChanged(session types.UploadSession) {
	notify.SendSessionState(o.runID, session)
}

func (o runObserver) EntrySettled(outcome types.UploadOutcome, settled, total int) {
	notify.SendUploadProgress(o.runID, outcome, settled, total)
}

// UserUpload starts uploading local files and folders to the remote store.
// POST /api/self/v1/upload
func UserUpload(c *gin.Context) {
	var request types.UserUploadRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body: "+err.Error()))
		return
	}
	if len(request.Paths) == 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("paths is required"))
		return
	}

	engine := models.GetUploadEngine()
	if engine == nil {
		c.JSON(http.StatusServiceUnavailable, tool.FastReturnError("Upload engine not configured"))
		return
	}
	caller, ok := models.GetCaller()
	if !ok {
		c.JSON(http.StatusUnauthorized, tool.FastReturnError("Not logged in to the remote store"))
		return
	}
	if !caller.CanUpload() {
		c.JSON(http.StatusForbidden, tool.FastReturnError("Guest accounts cannot upload files"))
		return
	}

	entries, err := tool.CollectEntries(request.Paths)
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError(fmt.Sprintf("Failed to collect files: %v", err)))
		return
	}
	if err := uploader.ValidateEntries(entries); err != nil {
		tool.CloseEntries(entries)
		c.JSON(http.StatusBadRequest, tool.FastReturnError(err.Error()))
		return
	}

	run := &types.UploadRun{
		ID:             tool.GenerateShortRunID(),
		TotalEntries:   len(entries),
		TotalBytes:     tool.TotalSize(entries),
		ParentFolderID: request.ParentFolderID,
		StartedAt:      time.Now(),
	}
	ctx := models.CreateRun(run)
	snapshot, _ := models.GetRun(run.ID)
	tool.DefaultLogger.Infof("[API] Run %s: %d files (%s) into %q",
		run.ID, run.TotalEntries, tool.HumanBytes(run.TotalBytes), request.ParentFolderID)
	notify.SendUploadStart(run.ID, run.TotalEntries, run.TotalBytes)

	if !request.Wait {
		go executeRun(ctx, engine, caller, run.ID, entries, request.ParentFolderID)
		c.JSON(http.StatusAccepted, tool.FastReturnRun(snapshot))
		return
	}

	// A client that gives up waiting cancels the run.
	stop := context.AfterFunc(c.Request.Context(), func() {
		models.CancelRun(run.ID)
	})
	defer stop()
	executeRun(ctx, engine, caller, run.ID, entries, request.ParentFolderID)
	finished, _ := models.GetRun(run.ID)
	c.JSON(http.StatusOK, tool.FastReturnRun(finished))
}

func executeRun(ctx context.Context, engine *uploader.Engine, caller types.Caller, runID string, entries []types.UploadEntry, parentFolderID string) {
	report, err := engine.WithObserver(runObserver{runID: runID}).Upload(ctx, caller, entries, parentFolderID)
	if err != nil {
		tool.DefaultLogger.Errorf("[API] Run %s refused: %v", runID, err)
		tool.CloseEntries(entries)
		reason := err.Error()
		if errors.Is(err, uploader.ErrRestrictedCaller) {
			reason = "Guest accounts cannot upload files"
		}
		outcomes := make([]types.UploadOutcome, 0, len(entries))
		for _, entry := range entries {
			outcomes = append(outcomes, types.FailureOutcome(entry, reason))
		}
		report = uploader.Aggregate(outcomes)
	}
	models.FinishRun(runID, report)
	notify.SendUploadEnd(runID, report)
}

// UserGetRun returns the state of a run and its report once finished.
// GET /api/self/v1/runs/:runId
func UserGetRun(c *gin.Context) {
	runID := c.Param("runId")
	run, ok := models.GetRun(runID)
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Run not found or expired"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnRun(run))
}

// UserCancelUpload cancels a running upload. Entries not yet settled are
// reported as cancelled.
// POST /api/self/v1/cancel?runId=xxx
func UserCancelUpload(c *gin.Context) {
	runID := c.Query("runId")
	if runID == "" {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing required parameter: runId"))
		return
	}
	run, ok := models.GetRun(runID)
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Run not found or expired"))
		return
	}
	if run.State == types.RunRunning && models.IsRunCancelled(runID) {
		c.JSON(http.StatusConflict, tool.FastReturnError("Run is already being cancelled"))
		return
	}
	if run.State != types.RunRunning || !models.CancelRun(runID) {
		c.JSON(http.StatusConflict, tool.FastReturnError("Run already finished"))
		return
	}
	tool.DefaultLogger.Infof("[API] Run %s cancelled by user", runID)
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}
