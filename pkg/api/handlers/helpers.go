package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/models"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// uintParam parses a numeric chi URL parameter. Returns 0 and false after
// writing a 400 response when the parameter is not a number.
func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		BadRequest(w, "Invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// serveFile streams an image file as-is, letting the standard library pick
// the content type from the extension.
func serveFile(w http.ResponseWriter, r *http.Request, path string) {
	http.ServeFile(w, r, path)
}

// servePNG decodes an image file and re-encodes it as PNG on the wire.
// Block outputs may be in whatever format the external command produced;
// the frontend renders PNG.
func servePNG(w http.ResponseWriter, r *http.Request, path string) {
	img, err := imaging.Open(path)
	if err != nil {
		logger.ErrorCtx(r.Context(), "Failed to decode image for transcoding",
			logger.KeyPath, path, logger.KeyError, err)
		InternalServerError(w, "Failed to decode image")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		logger.WarnCtx(r.Context(), "Failed to write PNG response",
			logger.KeyPath, path, logger.KeyError, err)
	}
}

// statusForError maps a domain error to the HTTP status the frontend
// contract expects.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrImageNotFound),
		errors.Is(err, models.ErrInvalidUUID),
		errors.Is(err, models.ErrInputImageNotFound),
		errors.Is(err, models.ErrBlockNotFound),
		errors.Is(err, models.ErrTerminalNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidWidth):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
