package handlers

import (
	"net/http"

	"github.com/kozaktomas/facerec/internal/pipeline"
)

// RecognizeHandler handles frame recognition requests.
type RecognizeHandler struct {
	pipe *pipeline.Pipeline
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(pipe *pipeline.Pipeline) *RecognizeHandler {
	return &RecognizeHandler{pipe: pipe}
}

// Recognize runs one uploaded frame through the pipeline and returns the
// frame result. A frame-level failure (detector unreachable) is reported as
// 502 with the result still in the body.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	img, filename, err := decodeImageUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.pipe.ProcessFrame(r.Context(), pipeline.Frame{
		SourceRef: filename,
		Image:     img,
	})

	status := http.StatusOK
	if result.FailureReason != "" {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, result)
}
