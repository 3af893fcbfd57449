package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"videoflix/internal/application/catalog"
	"videoflix/internal/domain/video"
)

const maxUploadBytes = 2 << 30

type catalogUseCases interface {
	CreateVideo(ctx context.Context, up catalog.Upload) (video.Asset, error)
	ListPublished(ctx context.Context) ([]catalog.ListItem, error)
	GetDetail(ctx context.Context, rawID string) (catalog.Detail, error)
	ListGenres(ctx context.Context) ([]video.Genre, error)
	DeleteVideo(ctx context.Context, rawID string) error
	ResolveManifest(ctx context.Context, rawID, rawTier string) (string, error)
	ResolveSegment(ctx context.Context, rawID, rawTier, rawSegment string) (string, error)
}

// Handler wires HTTP endpoints to catalog use cases.
type Handler struct {
	catalog catalogUseCases
	logger  zerolog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(service catalogUseCases, logger zerolog.Logger) *Handler {
	return &Handler{catalog: service, logger: logger}
}

// ListVideos handles GET /api/video/.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListPublished(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetVideo handles GET /api/video/{id}/.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.GetDetail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateVideo handles POST /api/video/: multipart upload metadata plus the
// source file and an optional thumbnail.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	up := catalog.Upload{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if genreID := r.FormValue("genre_id"); genreID != "" {
		up.GenreID = &genreID
	}

	source, sourceHeader, err := r.FormFile("video_file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "video_file is required")
		return
	}
	defer source.Close()
	up.Source = http.MaxBytesReader(w, source, maxUploadBytes)
	up.SourceName = sourceHeader.Filename

	if thumb, thumbHeader, err := r.FormFile("thumbnail"); err == nil {
		defer thumb.Close()
		up.Thumbnail = thumb
		up.ThumbnailName = thumbHeader.Filename
	}

	asset, err := h.catalog.CreateVideo(r.Context(), up)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    asset.ID,
		"title": asset.Title,
		"state": string(asset.State),
	})
}

// DeleteVideo handles DELETE /api/video/{id}/.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteVideo(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetManifest handles GET /api/video/{id}/{tier}/index.m3u8. Manifests are
// never cached: a re-run may rewrite the segment list.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	full, err := h.catalog.ResolveManifest(r.Context(), vars["id"], vars["tier"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", vars["tier"]+".m3u8"))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	serveWholeFile(w, full)
}

// GetSegment handles GET /api/video/{id}/{tier}/{segment}. Segments never
// change once written, hence the long immutable cache lifetime.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	full, err := h.catalog.ResolveSegment(r.Context(), vars["id"], vars["tier"], vars["segment"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	serveFileRange(w, r, full, "video/MP2T")
}

// ListGenres handles GET /api/genres/.
func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.ListGenres(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	type genreDTO struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]genreDTO, 0, len(genres))
	for _, g := range genres {
		out = append(out, genreDTO{ID: g.ID, Name: g.Name, Description: g.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps domain errors to generic client responses. Internal
// details (paths, tool output) stay in the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, video.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, video.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
