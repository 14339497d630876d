package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/dental-assistant/chatbot/internal/middleware"
	"github.com/zhouzirui/dental-assistant/chatbot/pkg/utils"
)

// NewRouter wires the kiosk bridge routes to a widget controller.
func NewRouter(ctrl widget.Controller, opts ...widget.Option) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	widgetHandler := widget.New(ctrl, opts...)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{
				"status":  "healthy",
				"service": "kiosk-bridge",
			})
		})

		widgetHandler.RegisterRoutes(api)
	})

	return r
}
