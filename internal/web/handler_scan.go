package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/eatinformed/internal/gateway"
	"github.com/vbonduro/eatinformed/internal/service"
)

const defaultMaxImageBytes = 10 << 20 // 10 MB

// formOverhead is the allowance for multipart headers and base64 inflation
// on top of the image size limit.
const formOverhead = 1 << 20

// allowedImageTypes is the set of MIME types accepted for label photos.
// net/http.DetectContentType handles JPEG and PNG via magic-byte sniffing.
// WebP is detected separately because the WHATWG sniffing algorithm, and
// therefore the stdlib, has no WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// requestError is a client error with the status to report it with.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

var (
	errNoImage       = &requestError{http.StatusBadRequest, "image file required"}
	errBadImageType  = &requestError{http.StatusUnsupportedMediaType, "unsupported image format; use JPEG, PNG or WebP"}
	errImageTooLarge = &requestError{http.StatusRequestEntityTooLarge, "image is too large"}
)

// readImage reads the label photo from a multipart "image" field or from a
// JSON body {"image": "data:<mime>;base64,<data>"}. The MIME type is always
// sniffed from the bytes.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (*gateway.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxImageBytes+formOverhead)

	var data []byte
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		data, err = readDataURIBody(r.Body)
	} else {
		data, err = s.readMultipartImage(r)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errImageTooLarge
		}
		return nil, err
	}

	if len(data) == 0 {
		return nil, errNoImage
	}
	if int64(len(data)) > s.opts.MaxImageBytes {
		return nil, errImageTooLarge
	}
	mimeType, ok := allowedImageMIME(data)
	if !ok {
		return nil, errBadImageType
	}
	return &gateway.Image{Data: data, MIMEType: mimeType}, nil
}

func (s *Server) readMultipartImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(s.opts.MaxImageBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, &requestError{http.StatusBadRequest, "failed to parse form"}
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errNoImage
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

func readDataURIBody(body io.Reader) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, &requestError{http.StatusBadRequest, "invalid JSON body"}
	}
	if req.Image == "" {
		return nil, errNoImage
	}
	return decodeDataURI(req.Image)
}

// decodeDataURI decodes a base64 data URI. The declared media type is
// ignored.
func decodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, &requestError{http.StatusBadRequest, "image must be a data URI"}
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, &requestError{http.StatusBadRequest, "image data URI must be base64 encoded"}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &requestError{http.StatusBadRequest, "image data URI is not valid base64"}
	}
	return data, nil
}

// writeImageError reports a readImage failure.
func (s *Server) writeImageError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, reqErr.status, reqErr.msg)
		return
	}
	s.logger.Error("read image failed", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to read image")
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	img, err := s.readImage(w, r)
	if err != nil {
		s.writeImageError(w, err)
		return
	}

	s.logger.Info("scan requested", "user_id", userID(r), "mime_type", img.MIMEType, "bytes", len(img.Data))
	outcome := s.scans.Scan(r.Context(), img)

	if r.Header.Get("HX-Request") == "true" {
		if err := s.renderPartial(w, "partials/result.html", "result", outcome); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleScanStream accepts the same body as handleScan but responds with an
// SSE stream: one event per scan stage, named after the stage, with the
// ScanEvent as JSON data. The last event is "complete".
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	img, err := s.readImage(w, r)
	if err != nil {
		s.writeImageError(w, err)
		return
	}

	// Use a detached context so that the analysis runs to completion even if
	// the client navigates away and the request context is cancelled.
	events := s.scans.ScanStream(context.WithoutCancel(r.Context()), img)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, canFlush := w.(http.Flusher)

	for ev := range events {
		if r.Context().Err() != nil {
			continue
		}
		if err := writeSSE(w, ev); err != nil {
			s.logger.Error("write scan event failed", "stage", ev.Stage, "error", err)
			continue
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, ev service.ScanEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Stage, data)
	return err
}

func userID(r *http.Request) int64 {
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.UserID
	}
	return 0
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
