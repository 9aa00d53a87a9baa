package handlers

import (
	"net/http"

	"github.com/kozaktomas/facerec/internal/gallery"
)

// GalleryHandler handles gallery inspection and maintenance endpoints.
type GalleryHandler struct {
	gal *gallery.Gallery
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(gal *gallery.Gallery) *GalleryHandler {
	return &GalleryHandler{gal: gal}
}

// Stats returns record and identity counts.
func (h *GalleryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gal.Stats())
}

// Rebuild reconstructs the index from a full store replay.
func (h *GalleryHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.gal.Rebuild(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": h.gal.Len(),
	})
}
