package recorder

import (
	"encoding/json"
	"net/http"
)

// NewRouter wires the status API routes to the recorder.
func NewRouter(r *Recorder) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", r.handleStatus)
	mux.HandleFunc("/api/threads", r.handleThreads)
	return mux
}

func (r *Recorder) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.Status())
}

func (r *Recorder) handleThreads(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.Threads())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
