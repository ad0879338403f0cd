package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

// FinalizeUpload asks the store to assemble all chunks of a session into a
// file and returns the descriptor of the created file.
func (c *Client) FinalizeUpload(ctx context.Context, req types.FinalizeRequest) (types.FileDescriptor, error) {
	targetURL, err := tool.BuildFinalizeURL(c.baseURL)
	if err != nil {
		return types.FileDescriptor{}, err
	}
	payload, err := sonic.Marshal(req)
	if err != nil {
		return types.FileDescriptor{}, fmt.Errorf("failed to marshal finalize request: %v", err)
	}

	op := "finalize " + req.SessionID
	body, _, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return types.FileDescriptor{}, err
	}

	var resp types.BatchResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return types.FileDescriptor{}, &RequestError{Op: op, Err: fmt.Errorf("failed to parse finalize response: %v", err)}
	}
	if len(resp.SuccessfulUploads) == 0 {
		detail := ""
		if len(resp.FailedUploads) > 0 {
			detail = resp.FailedUploads[0].Error
		}
		return types.FileDescriptor{}, &RequestError{Op: op, Detail: detail, Err: fmt.Errorf("store reported no created file")}
	}
	return resp.SuccessfulUploads[0], nil
}
