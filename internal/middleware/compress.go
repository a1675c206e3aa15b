package middleware

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	acceptEncodingHeader  = "Accept-Encoding"
	contentEncodingHeader = "Content-Encoding"
	contentLengthHeader   = "Content-Length"
	varyHeader            = "Vary"
	gzipEncoding          = "gzip"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

// gzipResponseWriter сжимает тело ответа. Ответы без тела (перенаправления, 204, 304) не сжимаются.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	wroteHeader bool
	compress    bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	if hasCompressibleBody(statusCode) {
		w.compress = true
		w.Header().Set(contentEncodingHeader, gzipEncoding)
		w.Header().Del(contentLengthHeader)
		w.gz.Reset(w.ResponseWriter)
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	if !w.compress {
		return w.ResponseWriter.Write(p)
	}

	n, err := w.gz.Write(p)
	if err != nil {
		return 0, fmt.Errorf("write compressed: %w", err)
	}

	return n, nil
}

func (w *gzipResponseWriter) close() error {
	if !w.compress {
		return nil
	}
	return w.gz.Close()
}

func hasCompressibleBody(status int) bool {
	switch {
	case status < http.StatusOK:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	case status >= http.StatusMultipleChoices && status < http.StatusBadRequest:
		return false
	}
	return true
}

type gzipRequestReader struct {
	io.ReadCloser
	gz *gzip.Reader
}

func newGzipRequestReader(r io.ReadCloser) (*gzipRequestReader, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}

	return &gzipRequestReader{
		r,
		gzipReader,
	}, nil
}

func (g *gzipRequestReader) Read(p []byte) (int, error) {
	n, err := g.gz.Read(p)

	if errors.Is(err, io.EOF) {
		return n, io.EOF
	}

	if err != nil {
		return 0, fmt.Errorf("read compressed: %w", err)
	}

	return n, nil
}

func (g *gzipRequestReader) Close() error {
	if err := g.ReadCloser.Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}

	if err := g.gz.Close(); err != nil {
		return fmt.Errorf("close gzip reader: %w", err)
	}

	return nil
}

// ResponseEncoder сжимает ответ, если клиент принимает gzip.
func ResponseEncoder(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get(acceptEncodingHeader), gzipEncoding) {
			h.ServeHTTP(w, r)
			return
		}

		gz, ok := gzipWriterPool.Get().(*gzip.Writer)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer gzipWriterPool.Put(gz)

		w.Header().Add(varyHeader, acceptEncodingHeader)
		gw := &gzipResponseWriter{ResponseWriter: w, gz: gz}
		defer func() {
			_ = gw.close()
		}()

		h.ServeHTTP(gw, r)
	})
}

// RequestDecoder распаковывает тело запроса, сжатое gzip.
func RequestDecoder(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get(contentEncodingHeader), gzipEncoding) {
			h.ServeHTTP(w, r)
			return
		}

		reader, err := newGzipRequestReader(r.Body)
		if err != nil {
			http.Error(w, "invalid gzip body", http.StatusBadRequest)
			return
		}

		r.Body = reader
		defer func() {
			_ = reader.Close()
		}()

		h.ServeHTTP(w, r)
	})
}
