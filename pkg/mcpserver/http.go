package mcpserver

import (
	"encoding/json"
	"net/http"
)

// SessionHeader carries the session issued on initialize.
const SessionHeader = "Mcp-Session-Id"

const maxRequestBytes = 1 << 20

// ServeHTTP handles one JSON-RPC request per POST. Every method except
// initialize requires the session header returned by initialize.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, CodeParseError, "Parse error"))
		return
	}

	if req.Method == "initialize" {
		w.Header().Set(SessionHeader, s.NewSession())
	} else if !s.CheckSession(r.Header.Get(SessionHeader)) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	resp := s.Handle(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
