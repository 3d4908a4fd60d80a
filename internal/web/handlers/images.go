package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/histogram"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// NeighborFinder returns approximate nearest neighbours of an indexed image.
type NeighborFinder interface {
	Neighbors(id, k int) ([]retrieval.Result, error)
}

// ImagesHandler serves corpus images and neighbour previews
type ImagesHandler struct {
	config    *config.Config
	engine    *retrieval.Engine
	neighbors NeighborFinder
}

// NewImagesHandler creates a new images handler. neighbors may be nil, in
// which case the neighbour preview is unavailable.
func NewImagesHandler(cfg *config.Config, engine *retrieval.Engine, neighbors NeighborFinder) *ImagesHandler {
	return &ImagesHandler{
		config:    cfg,
		engine:    engine,
		neighbors: neighbors,
	}
}

// ImageInfo describes one corpus image
type ImageInfo struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// ImageListResponse represents the image list response
type ImageListResponse struct {
	Images []ImageInfo `json:"images"`
	Total  int         `json:"total"`
}

// NeighborsResponse represents the neighbour preview response
type NeighborsResponse struct {
	ImageID   int                `json:"image_id"`
	Neighbors []retrieval.Result `json:"neighbors"`
}

// path returns where the image is stored, preferring the indexed path.
func (h *ImagesHandler) path(snap *retrieval.Snapshot, id int) string {
	if p, ok := snap.Paths[id]; ok && p != "" {
		return p
	}
	return h.config.Corpus.ImagePath(id)
}

// lookup resolves the {id} parameter against the loaded corpus, writing an
// error response on failure.
func (h *ImagesHandler) lookup(w http.ResponseWriter, r *http.Request) (*retrieval.Snapshot, int, bool) {
	snap := h.engine.Snapshot()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, retrieval.ErrNotReady.Error())
		return nil, 0, false
	}
	id, ok := imageIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid image id")
		return nil, 0, false
	}
	if !snap.Features.Has(id) {
		respondError(w, http.StatusNotFound, "image not found")
		return nil, 0, false
	}
	return snap, id, true
}

// List returns all indexed images
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, retrieval.ErrNotReady.Error())
		return
	}

	ids := snap.Features.IDs()
	images := make([]ImageInfo, len(ids))
	for i, id := range ids {
		images[i] = ImageInfo{ID: id, Path: h.path(snap, id)}
	}

	respondJSON(w, http.StatusOK, ImageListResponse{Images: images, Total: len(images)})
}

// Get returns the raw image bytes
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, id, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := os.ReadFile(h.path(snap, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "image file not found")
			return
		}
		log.Printf("Failed to read image %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Thumbnail returns a JPEG thumbnail fitting within {size} pixels
func (h *ImagesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	size, err := strconv.Atoi(chi.URLParam(r, "size"))
	if err != nil || size < 1 || size > constants.MaxThumbnailSize {
		respondError(w, http.StatusBadRequest, "invalid thumbnail size")
		return
	}
	snap, id, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := os.ReadFile(h.path(snap, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "image file not found")
			return
		}
		log.Printf("Failed to read image %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	thumb, err := histogram.Thumbnail(data, size)
	if err != nil {
		log.Printf("Failed to create thumbnail for image %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to create thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}

// Neighbors returns the approximate nearest neighbours of an image
func (h *ImagesHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	if h.neighbors == nil {
		respondError(w, http.StatusServiceUnavailable, "neighbour index not available")
		return
	}
	_, id, ok := h.lookup(w, r)
	if !ok {
		return
	}

	k := constants.DefaultNeighborLimit
	if s := r.URL.Query().Get("k"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid k")
			return
		}
		k = parsed
	}

	results, err := h.neighbors.Neighbors(id, k)
	if err != nil {
		if errors.Is(err, database.ErrIndexNotBuilt) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondRetrievalError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NeighborsResponse{ImageID: id, Neighbors: results})
}
