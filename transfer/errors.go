package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	StatusCreated           = 201 // Finalize accepted, file registered
	StatusMultiStatus       = 207 // Bulk upload finished, per-file results in body
	StatusBadRequest        = 400 // Missing chunks / quota exceeded
	StatusUnauthorized      = 401 // Token missing, expired, or guest account
	StatusForbidden         = 403 // Target folder owned by someone else
	StatusNotFound          = 404 // Target folder not found
	StatusRequestTimeout    = 408
	StatusTooLarge          = 413
	StatusTooManyRequests   = 429
	StatusUnprocessable     = 422 // Form validation failed
	StatusInternalServerErr = 500 // Assembly or registration failed
)

// GenericFailureReason is reported when the store gives no structured error.
const GenericFailureReason = "Upload failed"

// CancelledReason is reported for entries that never settled because the run was cancelled.
const CancelledReason = "Upload cancelled"

var ErrUnauthorized = errors.New("unauthorized")

// RequestError describes one failed request to the remote store.
// StatusCode is zero when the request never got a response.
type RequestError struct {
	Op         string
	StatusCode int
	Status     string
	FileName   string // from the structured error body, when present
	Detail     string // server-provided reason, when present
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("%s failed: %s: %v", e.Op, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s failed: %s (%s)", e.Op, e.Detail, e.Status)
	default:
		return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resending the same request may succeed.
func (e *RequestError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	if e.StatusCode == 0 {
		return e.Err != nil && !errors.Is(e.Err, ErrUnauthorized)
	}
	switch e.StatusCode {
	case StatusRequestTimeout, StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError
}

// Reason extracts a short human readable reason from a request failure.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return CancelledReason
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Detail != "" {
			return reqErr.Detail
		}
		if errors.Is(reqErr.Err, context.DeadlineExceeded) {
			return GenericFailureReason + " (timed out)"
		}
		if reqErr.Status != "" {
			return fmt.Sprintf("%s (%s)", GenericFailureReason, reqErr.Status)
		}
	}
	return GenericFailureReason
}

func newStatusError(op string, resp *http.Response, body []byte) *RequestError {
	fileName, detail := parseErrorDetail(body)
	reqErr := &RequestError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		FileName:   fileName,
		Detail:     detail,
	}
	if resp.StatusCode == StatusUnauthorized {
		reqErr.Err = ErrUnauthorized
	}
	return reqErr
}

// parseErrorDetail understands the store's error bodies:
// {"detail": {"file_name": ..., "error": ...}}, {"detail": "message"}
// and validation errors {"detail": [{"msg": ...}]}.
func parseErrorDetail(body []byte) (fileName, detail string) {
	if len(body) == 0 {
		return "", ""
	}
	var envelope struct {
		Detail any `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return "", ""
	}
	switch d := envelope.Detail.(type) {
	case string:
		return "", d
	case map[string]any:
		fileName, _ = d["file_name"].(string)
		detail, _ = d["error"].(string)
		return fileName, detail
	case []any:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok && msg != "" {
					msgs = append(msgs, msg)
				}
			}
		}
		return "", strings.Join(msgs, "; ")
	}
	return "", ""
}
