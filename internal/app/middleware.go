package app

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const requestIdHeader = "X-Request-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router) {

	// Tag every request with an id, reusing the caller's one when present
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			requestId := req.Header.Get(requestIdHeader)
			if requestId == "" {
				requestId = uuid.NewString()
			}
			w.Header().Set(requestIdHeader, requestId)
			log.WithFields(log.Fields{
				"request_id": requestId,
				"method":     req.Method,
				"path":       req.URL.Path,
			}).Debug("Handling request")
			next.ServeHTTP(w, req)
		})
	})
}
