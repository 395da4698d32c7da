package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/handlers"
)

func NewHTTPServer(port string, handler *handlers.Handler, logger *logrus.Logger) *http.Server {
	router := mux.NewRouter()

	// Lead intake and case lifecycle
	router.HandleFunc("/leads", handler.NewLead).Methods("POST")
	router.HandleFunc("/cases/{id}", handler.GetCase).Methods("GET")
	router.HandleFunc("/cases/{id}/acknowledge", handler.Acknowledge).Methods("POST")
	router.HandleFunc("/cases/{id}/abort", handler.Abort).Methods("POST")

	// Team directory writes, owned by the host CRM
	router.HandleFunc("/team/{id}", handler.UpsertMember).Methods("PUT")
	router.HandleFunc("/team/{id}/availability", handler.SetAvailability).Methods("PUT")
	router.HandleFunc("/team/{id}/workload", handler.SetWorkload).Methods("PUT")

	// Response analytics
	router.HandleFunc("/analytics/team", handler.TeamStats).Methods("GET")
	router.HandleFunc("/analytics/members/{id}", handler.MemberStats).Methods("GET")

	// Operational endpoints
	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.HandleFunc("/status", handler.Status).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(loggingMiddleware(logger))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
