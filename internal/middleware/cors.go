package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser pages on any origin to call the API. The kiosk page and
// the widget's dev backend are both reached cross-origin during development.
var CORS = cors.Handler(cors.Options{
	AllowedOrigins:   []string{"https://*", "http://*"},
	AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key", "X-Amz-Date"},
	ExposedHeaders:   []string{"X-Request-Id"},
	AllowCredentials: true,
	MaxAge:           600,
})
