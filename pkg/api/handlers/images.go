package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/store"
	"github.com/patchbay-dev/patchbay/pkg/thumbnail"
)

// ImageHandler handles upload and preview endpoints.
type ImageHandler struct {
	store          *store.GORMStore
	images         *imagestore.Store
	thumbs         *thumbnail.Service
	maxUploadBytes int64
}

// NewImageHandler creates a new image handler.
func NewImageHandler(st *store.GORMStore, images *imagestore.Store, thumbs *thumbnail.Service, maxUploadBytes int64) *ImageHandler {
	return &ImageHandler{
		store:          st,
		images:         images,
		thumbs:         thumbs,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /VIPS/upload.
//
// Accepts a multipart form with one or more files under the "files[]"
// field. Each file is written into the image store under a fresh UUID
// before its ledger row is created, so a row never references a missing
// file.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		BadRequest(w, "Invalid multipart form")
		return
	}

	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		BadRequest(w, "No files in upload")
		return
	}

	for _, header := range files {
		src, err := header.Open()
		if err != nil {
			InternalServerError(w, "Failed to read uploaded file")
			return
		}

		imageUUID := uuid.NewString()
		path, err := h.images.SaveUpload(src, imageUUID, header.Filename)
		_ = src.Close()
		if err != nil {
			logger.ErrorCtx(r.Context(), "Failed to store upload",
				logger.KeyFilename, header.Filename, logger.KeyError, err)
			InternalServerError(w, "Failed to store uploaded file")
			return
		}

		if err := h.store.CreateInputImage(r.Context(), &models.InputImage{
			UUID:             imageUUID,
			OriginalFilename: header.Filename,
		}); err != nil {
			_ = h.images.RemoveIfPresent(path)
			logger.ErrorCtx(r.Context(), "Failed to record upload",
				logger.KeyFilename, header.Filename, logger.KeyError, err)
			InternalServerError(w, "Failed to record uploaded file")
			return
		}

		logger.InfoCtx(r.Context(), "Image uploaded",
			logger.KeyImage, imageUUID,
			logger.KeyFilename, header.Filename)
	}

	WriteJSONOK(w, map[string]string{"message": "Upload complete."})
}

// ListInputs handles GET /VIPS/inputs, returning the upload ledger newest
// first.
func (h *ImageHandler) ListInputs(w http.ResponseWriter, r *http.Request) {
	images, err := h.store.ListInputImages(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list input images")
		return
	}
	WriteJSONOK(w, images)
}

// Preview handles GET /VIPS/preview/{uuid}[?w=<width>].
//
// Without a width the original (or derived) file is served as-is. With a
// width the thumbnail service produces or reuses the JPEG thumbnail.
func (h *ImageHandler) Preview(w http.ResponseWriter, r *http.Request) {
	imageUUID := chi.URLParam(r, "uuid")

	if rawWidth := r.URL.Query().Get("w"); rawWidth != "" {
		width, err := strconv.Atoi(rawWidth)
		if err != nil {
			BadRequest(w, "Invalid width")
			return
		}

		path, err := h.thumbs.Thumbnail(r.Context(), imageUUID, width)
		if err != nil {
			h.writePreviewError(w, err)
			return
		}
		serveFile(w, r, path)
		return
	}

	path, err := h.images.Resolve(imageUUID)
	if err != nil {
		h.writePreviewError(w, err)
		return
	}
	serveFile(w, r, path)
}

func (h *ImageHandler) writePreviewError(w http.ResponseWriter, err error) {
	switch status := statusForError(err); status {
	case http.StatusNotFound:
		NotFound(w, "Image not found")
	case http.StatusBadRequest:
		BadRequest(w, err.Error())
	default:
		if errors.Is(err, models.ErrExecFailed) {
			InternalServerError(w, "Thumbnail generation failed")
			return
		}
		InternalServerError(w, err.Error())
	}
}
