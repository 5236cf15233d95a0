package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rmpassist/rmp-assistant/internal/api/response"
)

// RequestBodyTooLargeRecorder records when a request is rejected for exceeding the body limit.
// Pass nil when metrics are disabled.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody limits request bodies to maxBytes. A declared Content-Length over the limit is
// rejected with 413 before the handler runs; otherwise the body is wrapped in
// http.MaxBytesReader and the handler answers 413 when decoding fails with *http.MaxBytesError.
// The response is never buffered, so streamed responses pass straight through.
// Use 0 or negative to disable.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				if recorder != nil {
					recorder.RecordRequestBodyTooLarge(r.Context())
				}

				response.RespondRequestEntityTooLarge(w)

				return
			}

			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)

				return
			}

			body := &maxBodyReader{ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes)}
			if recorder != nil {
				ctx := r.Context()
				body.onTooLarge = func() { recorder.RecordRequestBodyTooLarge(ctx) }
			}

			r.Body = body
			next.ServeHTTP(w, r)
		})
	}
}

// maxBodyReader reports the first read that hits the body limit.
type maxBodyReader struct {
	io.ReadCloser

	once       sync.Once
	onTooLarge func()
}

func (r *maxBodyReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if err != nil && r.onTooLarge != nil && errors.As(err, &tooLarge) {
		r.once.Do(r.onTooLarge)
	}

	return n, err //nolint:wrapcheck // callers match *http.MaxBytesError
}
