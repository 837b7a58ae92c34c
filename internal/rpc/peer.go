package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/printforge/internal/consensus"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req consensus.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	writeJSON(w, http.StatusOK, s.node.HandleVote(req))
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req consensus.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	writeJSON(w, http.StatusOK, s.node.HandleHeartbeat(req))
}

func (s *Server) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var req consensus.ReplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	resp := s.node.HandleReplicate(req)
	if !resp.Success {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.node.Status()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Snapshot())
}

func (s *Server) handleLogsFrom(w http.ResponseWriter, r *http.Request) {
	from, err := parseIndexParam(r.PathValue("from_index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from_index"})
		return
	}
	writeJSON(w, http.StatusOK, s.node.LogsFrom(from))
}
