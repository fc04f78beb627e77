package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverPanics, s.withRequestContext, s.logRequests, securityHeaders)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Loader endpoint for the game client; always public.
	r.HandleFunc("/raw/{id}", s.handleRaw).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/verify", s.handleVerify).Methods("POST")

	protected := api.NewRoute().Subrouter()
	if s.config.Auth.Enforce {
		protected.Use(s.requireSession)
	}

	// Scripts
	protected.HandleFunc("/scripts", s.handleCreateScript).Methods("POST")
	protected.HandleFunc("/scripts", s.handleListScripts).Methods("GET")
	protected.HandleFunc("/scripts/{id}", s.handleGetScript).Methods("GET")
	protected.HandleFunc("/scripts/{id}", s.handleUpdateScript).Methods("PATCH")
	protected.HandleFunc("/scripts/{id}", s.handleDeleteScript).Methods("DELETE")
	protected.HandleFunc("/scripts/{id}/loader", s.handleLoaderSnippet).Methods("GET")

	// Obfuscator
	protected.HandleFunc("/obfuscate", s.handleObfuscate).Methods("POST")

	// Logs
	protected.HandleFunc("/logs", s.handleListLogs).Methods("GET")
	protected.HandleFunc("/stats", s.handleStats).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, messageResponse{Message: msgNotFound})
			return
		}
		writeText(w, http.StatusNotFound, msgNotFound)
	})

	return r
}
