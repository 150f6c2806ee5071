// internal/app/features/images/handler.go
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	imagestore "github.com/dalemusser/planhub/internal/app/store/images"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxBytes bounds a single upload.
const DefaultMaxBytes = 5 << 20

// allowedTypes are the sniffed content types we accept.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Handler serves plan image uploads and downloads.
type Handler struct {
	Store    imagestore.Store
	MaxBytes int64
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs an images Handler. maxBytes <= 0 means DefaultMaxBytes.
func NewHandler(store imagestore.Store, maxBytes int64, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Handler{
		Store:    store,
		MaxBytes: maxBytes,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// URL is the public path of an uploaded image.
func URL(id string) string { return "/images/" + id }

type uploadResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (h *Handler) put(ctx context.Context, filename string, data []byte) (imagestore.Image, error) {
	const op = "images.Upload"
	if len(data) == 0 {
		return imagestore.Image{}, apperr.Validation(op, "image is empty")
	}
	if int64(len(data)) > h.MaxBytes {
		return imagestore.Image{}, apperr.Validation(op, fmt.Sprintf("image is larger than %d bytes", h.MaxBytes))
	}
	// The declared type is ignored; the bytes decide.
	ct := http.DetectContentType(data)
	if !allowedTypes[ct] {
		return imagestore.Image{}, apperr.Validation(op, "unsupported image type "+ct)
	}

	img, err := h.Store.Put(ctx, filename, ct, data)
	if err != nil {
		h.Log.Error("image upload failed", zap.String("filename", filename), zap.Error(err))
		return imagestore.Image{}, apperr.Wrap(op, apperr.KindStoreUnavailable, "could not store the image", err)
	}
	h.Log.Info("image stored", zap.String("image_id", img.ID), zap.Int64("size", img.Size))
	return img, nil
}

// HandleUpload handles POST /images (multipart form, field "file").
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			uierrors.WriteError(w, http.StatusRequestEntityTooLarge, "validation_failed", "image is too large")
			return
		}
		uierrors.RenderBadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		uierrors.RenderBadRequest(w, `missing "file" field`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxBytes+1))
	if err != nil {
		uierrors.RenderBadRequest(w, "could not read upload")
		return
	}

	ctx, cancel := timeouts.WithLong(r.Context())
	defer cancel()

	img, err := h.put(ctx, header.Filename, data)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}

	w.Header().Set("Location", URL(img.ID))
	uierrors.WriteJSON(w, http.StatusCreated, uploadResponse{
		ID:          img.ID,
		URL:         URL(img.ID),
		ContentType: img.ContentType,
		Size:        img.Size,
	})
}

// ServeImage handles GET /images/{id}.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithLong(r.Context())
	defer cancel()

	img, rc, err := h.Store.Open(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, imagestore.ErrNotFound) {
			uierrors.WriteError(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		h.ErrLog.Render(w, r, apperr.Wrap("images.Serve", apperr.KindStoreUnavailable, "could not load the image", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(img.Size, 10))
	// Ids are never reused, so the bytes behind a URL never change.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("image stream interrupted", zap.String("image_id", img.ID), zap.Error(err))
	}
}
