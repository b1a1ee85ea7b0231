package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
)

// maxMemory is the multipart size kept in memory before spilling to disk.
const maxMemory = 32 << 20

// UploadDependencies defines the interface for upload processing.
type UploadDependencies interface {
	Process(ctx context.Context, up model.Upload) (*model.Run, error)
}

// UploadsHandler handles CSV uploads.
type UploadsHandler struct {
	deps     UploadDependencies
	view     runView
	maxBytes int64
	logger   logger.Logger
}

// NewUploadsHandler creates a new uploads handler.
func NewUploadsHandler(deps UploadDependencies, view runView, maxBytes int64, log logger.Logger) *UploadsHandler {
	return &UploadsHandler{deps: deps, view: view, maxBytes: maxBytes, logger: log}
}

// HandleUpload handles POST /uploads requests. The form carries the CSV in
// "file" and an optional "webhook_url".
func (h *UploadsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload"

	if r.ContentLength > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrTooLarge))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing file")))
		return
	}
	defer file.Close()

	run, err := h.deps.Process(r.Context(), model.Upload{
		Filename:   header.Filename,
		Body:       file,
		WebhookURL: strings.TrimSpace(r.FormValue("webhook_url")),
	})
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "upload failed",
				logger.String("file", header.Filename),
				logger.Error(err),
			)
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view.render(run))
}
