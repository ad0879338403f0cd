package transfer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

// UploadChunk sends one byte range of a session. Retries resend the same
// session id and chunk index, which the store treats as an overwrite.
func (c *Client) UploadChunk(ctx context.Context, chunk types.ChunkUpload) error {
	if chunk.SessionID == "" {
		return fmt.Errorf("chunk upload requires a session id")
	}
	if chunk.Data == nil {
		return fmt.Errorf("chunk %d of session %s has no data", chunk.ChunkIndex, chunk.SessionID)
	}
	targetURL, err := tool.BuildChunkURL(c.baseURL)
	if err != nil {
		return err
	}

	op := fmt.Sprintf("upload chunk %d of %s", chunk.ChunkIndex, chunk.SessionID)
	_, _, err = c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		data, err := rewind(chunk.Data, chunk.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to rewind chunk data: %v", err)
		}
		return newMultipartRequest(ctx, targetURL, []formPart{
			{Name: "upload_id", Value: chunk.SessionID},
			{Name: "chunk_index", Value: strconv.Itoa(chunk.ChunkIndex)},
			{Name: "file_chunk", FileName: "blob", Content: data},
		})
	})
	return err
}
