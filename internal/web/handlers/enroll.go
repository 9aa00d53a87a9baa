package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/facerec/internal/gallery"
	"github.com/kozaktomas/facerec/internal/pipeline"
)

// EnrollHandler handles gallery enrollment requests.
type EnrollHandler struct {
	pipe *pipeline.Pipeline
	gal  *gallery.Gallery
}

// NewEnrollHandler creates a new enroll handler.
func NewEnrollHandler(pipe *pipeline.Pipeline, gal *gallery.Gallery) *EnrollHandler {
	return &EnrollHandler{pipe: pipe, gal: gal}
}

// EnrollResponse is returned after a successful enrollment.
type EnrollResponse struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Enroll extracts an embedding from the uploaded image and enrolls it under
// the given label. The image must contain at least one sharp face.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	img, filename, err := decodeImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	label := r.FormValue("label")
	if label == "" {
		respondError(w, http.StatusBadRequest, "label is required")
		return
	}

	embedding, _, err := h.pipe.EmbedBestFace(r.Context(), img)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNoFace), errors.Is(err, pipeline.ErrBlurryFace):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	id, err := h.gal.Enroll(r.Context(), embedding, label, filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, EnrollResponse{ID: id, Label: gallery.NormalizeLabel(label)})
}
