package uploader

import (
	"context"
	"io"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/transfer"
	"github.com/moyoez/cloudsend/types"
)

// MissingResultReason is reported for a batch entry the store said nothing about.
const MissingResultReason = "Upload failed (missing from server response)"

// runBatch sends every direct entry in one request and returns one outcome
// per entry, in entry order.
func (e *Engine) runBatch(ctx context.Context, entries []types.UploadEntry, parentFolderID string) []types.UploadOutcome {
	if len(entries) == 0 {
		return nil
	}
	batch := types.BatchUpload{
		Files:          make([]types.BatchFile, 0, len(entries)),
		ParentFolderID: parentFolderID,
	}
	var total int64
	for _, entry := range entries {
		batch.Files = append(batch.Files, types.BatchFile{
			FileName:     entry.FileName(),
			RelativePath: entry.RelativePath,
			Content:      io.NewSectionReader(entry.Content, 0, entry.SizeBytes),
			Size:         entry.SizeBytes,
		})
		total += entry.SizeBytes
	}

	tool.DefaultLogger.Debugf("[Batch] Sending %d files (%s)", len(entries), tool.HumanBytes(total))
	var resp types.BatchResponse
	err := e.pool.run(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.transport.UploadBatch(ctx, batch)
		return err
	})
	if err != nil {
		reason := transfer.Reason(err)
		tool.DefaultLogger.Warnf("[Batch] Request failed, %d files not uploaded: %v", len(entries), err)
		outcomes := make([]types.UploadOutcome, len(entries))
		for i, entry := range entries {
			outcomes[i] = types.FailureOutcome(entry, reason)
		}
		return outcomes
	}
	return matchBatchResults(entries, resp)
}

// matchBatchResults pairs the store's per-file results with entries. Each
// server result is used at most once. Failures naming an entry's path are
// matched first, then successes by file name, then failures by file name.
// Entries left without a result are reported as failures.
func matchBatchResults(entries []types.UploadEntry, resp types.BatchResponse) []types.UploadOutcome {
	outcomes := make([]types.UploadOutcome, len(entries))
	matched := make([]bool, len(entries))
	usedSuccess := make([]bool, len(resp.SuccessfulUploads))
	usedFailure := make([]bool, len(resp.FailedUploads))

	failureOutcome := func(entry types.UploadEntry, failed types.FailedUpload) types.UploadOutcome {
		reason := failed.Error
		if reason == "" {
			reason = transfer.GenericFailureReason
		}
		return types.FailureOutcome(entry, reason)
	}

	for i, entry := range entries {
		for j, failed := range resp.FailedUploads {
			if !usedFailure[j] && failed.Path != "" && failed.Path == entry.RelativePath {
				usedFailure[j], matched[i] = true, true
				outcomes[i] = failureOutcome(entry, failed)
				break
			}
		}
	}
	for i, entry := range entries {
		if matched[i] {
			continue
		}
		for j, desc := range resp.SuccessfulUploads {
			if !usedSuccess[j] && desc.FileName == entry.FileName() {
				usedSuccess[j], matched[i] = true, true
				outcomes[i] = types.SuccessOutcome(entry, desc)
				break
			}
		}
	}
	for i, entry := range entries {
		if matched[i] {
			continue
		}
		for j, failed := range resp.FailedUploads {
			if !usedFailure[j] && failed.FileName == entry.FileName() {
				usedFailure[j], matched[i] = true, true
				outcomes[i] = failureOutcome(entry, failed)
				break
			}
		}
	}
	for i, entry := range entries {
		if !matched[i] {
			tool.DefaultLogger.Warnf("[Batch] No result for %s in server response", entry.RelativePath)
			outcomes[i] = types.FailureOutcome(entry, MissingResultReason)
		}
	}

	for j, desc := range resp.SuccessfulUploads {
		if !usedSuccess[j] {
			tool.DefaultLogger.Warnf("[Batch] Ignoring unmatched success for %s (id %s)", desc.FileName, desc.ID)
		}
	}
	for j, failed := range resp.FailedUploads {
		if !usedFailure[j] {
			tool.DefaultLogger.Warnf("[Batch] Ignoring unmatched failure for %s: %s", failed.FileName, failed.Error)
		}
	}
	return outcomes
}
