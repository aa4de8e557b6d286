package internal

import (
	"encoding/json"
	"net/http"
)

// Server bundles the state the HTTP surface needs: the store for history and
// presence queries, the hub for websocket upgrades, and the upload handler.
type Server struct {
	store   Store
	hub     *Hub
	metrics *Metrics
	uploads *UploadHandler
}

func NewServer(store Store, hub *Hub, metrics *Metrics, uploads *UploadHandler) *Server {
	return &Server{store: store, hub: hub, metrics: metrics, uploads: uploads}
}

// ServeWS upgrades a websocket connection and attaches it to the hub.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ServeWS(s.hub, w, r)
}

// HandleMessages returns the full message history in insertion order.
func (s *Server) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	messages, err := s.store.ListMessages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// HandleOnlineUsers returns the usernames whose user record currently holds
// a live socket ID.
func (s *Server) HandleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	names, err := s.store.OnlineUsernames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// HandleUpload accepts a multipart file upload.
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	s.uploads.HandleUpload(w, r)
}

// MetricsHandler exposes the JSON counters endpoint.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

// CORSMiddleware opens every route to any origin and answers preflight
// requests directly.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
