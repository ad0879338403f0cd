package transfer

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// formPart is one field of a multipart request body.
type formPart struct {
	Name        string
	Value       string
	FileName    string
	ContentType string
	Content     io.Reader // nil for plain value fields
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// newMultipartRequest streams parts into the request body through a pipe so
// chunk data is never buffered in full.
func newMultipartRequest(ctx context.Context, url string, parts []formPart) (*http.Request, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeParts(writer, parts)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func writeParts(writer *multipart.Writer, parts []formPart) error {
	for _, part := range parts {
		if part.Content == nil {
			if err := writer.WriteField(part.Name, part.Value); err != nil {
				return fmt.Errorf("failed to write field %s: %v", part.Name, err)
			}
			continue
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(part.Name), escapeQuotes(part.FileName)))
		contentType := part.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		w, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("failed to create part %s: %v", part.Name, err)
		}
		if _, err := io.Copy(w, part.Content); err != nil {
			return fmt.Errorf("failed to write part %s: %w", part.Name, err)
		}
	}
	return nil
}

// rewind returns a reader positioned at the start of content. Readers that
// also implement io.ReaderAt get an independent section so a previous attempt
// still draining in the pipe goroutine cannot race with the new one.
func rewind(content io.ReadSeeker, size int64) (io.Reader, error) {
	if ra, ok := content.(io.ReaderAt); ok && size > 0 {
		return io.NewSectionReader(ra, 0, size), nil
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return content, nil
}
