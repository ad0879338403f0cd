package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

// UploadBatch sends several small files in one multipart request. The store
// answers 207 with per-file results; the caller matches them to entries.
func (c *Client) UploadBatch(ctx context.Context, batch types.BatchUpload) (types.BatchResponse, error) {
	if len(batch.Files) == 0 {
		return types.BatchResponse{}, nil
	}
	targetURL, err := tool.BuildBulkUploadURL(c.baseURL)
	if err != nil {
		return types.BatchResponse{}, err
	}

	op := fmt.Sprintf("batch upload of %d files", len(batch.Files))
	body, _, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		parts, err := batchParts(batch)
		if err != nil {
			return nil, err
		}
		return newMultipartRequest(ctx, targetURL, parts)
	})
	if err != nil {
		return types.BatchResponse{}, err
	}

	var resp types.BatchResponse
	if len(body) == 0 {
		return resp, nil
	}
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return types.BatchResponse{}, &RequestError{Op: op, Err: fmt.Errorf("failed to parse batch response: %v", err)}
	}
	return resp, nil
}

// batchParts lays out the form the store expects: every file under "files",
// then one "file_paths" value per file in the same order.
func batchParts(batch types.BatchUpload) ([]formPart, error) {
	parts := make([]formPart, 0, len(batch.Files)*2+1)
	for _, file := range batch.Files {
		if file.Content == nil {
			return nil, fmt.Errorf("file %s has no content", file.RelativePath)
		}
		contentType, err := detectContentType(file.Content, file.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", file.RelativePath, err)
		}
		content, err := rewind(file.Content, file.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to rewind %s: %v", file.RelativePath, err)
		}
		parts = append(parts, formPart{
			Name:        "files",
			FileName:    file.FileName,
			ContentType: contentType,
			Content:     content,
		})
	}
	for _, file := range batch.Files {
		parts = append(parts, formPart{Name: "file_paths", Value: file.RelativePath})
	}
	if batch.ParentFolderID != "" {
		parts = append(parts, formPart{Name: "parent_folder_id", Value: batch.ParentFolderID})
	}
	return parts, nil
}

// detectContentType sniffs the head of the content.
func detectContentType(content io.ReadSeeker, size int64) (string, error) {
	r, err := rewind(content, size)
	if err != nil {
		return "", err
	}
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}
