package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facerec/internal/gallery"
	"github.com/kozaktomas/facerec/internal/pipeline"
	"github.com/kozaktomas/facerec/internal/web/handlers"
)

func (s *Server) setupRoutes(pipe *pipeline.Pipeline, gal *gallery.Gallery) {
	recognizeHandler := handlers.NewRecognizeHandler(pipe)
	enrollHandler := handlers.NewEnrollHandler(pipe, gal)
	galleryHandler := handlers.NewGalleryHandler(gal)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/enroll", enrollHandler.Enroll)

		r.Get("/gallery/stats", galleryHandler.Stats)
		r.Post("/gallery/rebuild", galleryHandler.Rebuild)
	})
}
