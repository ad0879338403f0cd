package uploader

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/transfer"
	"github.com/moyoez/cloudsend/types"
)

// TotalChunks returns ceil(size / chunkSize).
func TotalChunks(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// NewSession creates the pending session of one chunked entry.
func NewSession(entry types.UploadEntry, chunkSize int64, parentFolderID string) (*types.UploadSession, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if entry.SizeBytes <= 0 {
		return nil, fmt.Errorf("%s: cannot chunk an empty file", entry.RelativePath)
	}
	return &types.UploadSession{
		ID:             tool.GenerateRandomUUID(),
		Entry:          entry,
		ChunkSizeBytes: chunkSize,
		TotalChunks:    TotalChunks(entry.SizeBytes, chunkSize),
		ParentFolderID: parentFolderID,
		Status:         types.SessionPending,
	}, nil
}

// PlanChunks lists the byte ranges of a session. They are contiguous and
// cover exactly [0, SizeBytes).
func PlanChunks(session *types.UploadSession) []types.ChunkTask {
	tasks := make([]types.ChunkTask, 0, session.TotalChunks)
	size := session.Entry.SizeBytes
	for i := 0; i < session.TotalChunks; i++ {
		start := int64(i) * session.ChunkSizeBytes
		tasks = append(tasks, types.ChunkTask{
			SessionID: session.ID,
			Index:     i,
			Start:     start,
			End:       min(start+session.ChunkSizeBytes, size),
		})
	}
	return tasks
}

func (e *Engine) transition(session *types.UploadSession, next types.SessionStatus) {
	if !session.Status.CanTransitionTo(next) {
		tool.DefaultLogger.Errorf("[Session] %s: illegal transition %s -> %s", session.ID, session.Status, next)
		return
	}
	tool.DefaultLogger.Debugf("[Session] %s (%s): %s -> %s", session.ID, session.Entry.RelativePath, session.Status, next)
	session.Status = next
	e.observer.SessionChanged(*session)
}

// runSession uploads every chunk of entry and finalizes the session. It
// always returns exactly one outcome for the entry.
func (e *Engine) runSession(ctx context.Context, entry types.UploadEntry, parentFolderID string) types.UploadOutcome {
	session, err := NewSession(entry, e.opts.ChunkSizeBytes, parentFolderID)
	if err != nil {
		tool.DefaultLogger.Warnf("[Session] %v", err)
		return types.FailureOutcome(entry, transfer.GenericFailureReason)
	}

	e.transition(session, types.SessionChunkingInFlight)
	if err := e.sendChunks(ctx, session); err != nil {
		e.transition(session, types.SessionFailed)
		reason := transfer.Reason(err)
		tool.DefaultLogger.Warnf("[Session] %s: chunk upload failed: %v", entry.RelativePath, err)
		return types.FailureOutcome(entry, reason)
	}

	e.transition(session, types.SessionFinalizing)
	descriptor, err := e.finalize(ctx, session)
	if err != nil {
		e.transition(session, types.SessionFailed)
		tool.DefaultLogger.Warnf("[Session] %s: finalize failed: %v", entry.RelativePath, err)
		return types.FailureOutcome(entry, transfer.Reason(err))
	}

	e.transition(session, types.SessionSucceeded)
	tool.DefaultLogger.Debugf("[Session] %s uploaded in %d chunks (%s)",
		entry.RelativePath, session.TotalChunks, tool.HumanBytes(entry.SizeBytes))
	return types.SuccessOutcome(entry, descriptor)
}

// sendChunks fans the chunk requests of one session out through the pool.
// The first failure stops dispatching the remaining chunks of this session.
func (e *Engine) sendChunks(ctx context.Context, session *types.UploadSession) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxInFlight)
	for _, task := range PlanChunks(session) {
		task := task
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return e.pool.run(gctx, func(ctx context.Context) error {
				return e.transport.UploadChunk(ctx, types.ChunkUpload{
					SessionID:  task.SessionID,
					ChunkIndex: task.Index,
					Data:       io.NewSectionReader(session.Entry.Content, task.Start, task.Len()),
					Size:       task.Len(),
				})
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// A cancelled parent may stop the loop before any chunk failed.
	return ctx.Err()
}

func (e *Engine) finalize(ctx context.Context, session *types.UploadSession) (types.FileDescriptor, error) {
	req := types.FinalizeRequest{
		SessionID:    session.ID,
		FileName:     session.Entry.FileName(),
		TotalChunks:  session.TotalChunks,
		RelativePath: session.Entry.RelativePath,
	}
	if session.ParentFolderID != "" {
		parent := session.ParentFolderID
		req.ParentFolderID = &parent
	}
	var descriptor types.FileDescriptor
	err := e.pool.run(ctx, func(ctx context.Context) error {
		var err error
		descriptor, err = e.transport.FinalizeUpload(ctx, req)
		return err
	})
	return descriptor, err
}
