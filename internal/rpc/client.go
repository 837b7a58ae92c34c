package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/cuemby/printforge/internal/consensus"
	"github.com/cuemby/printforge/internal/domain"
	"github.com/cuemby/printforge/internal/metrics"
	"github.com/cuemby/printforge/internal/statemachine"
)

// validationStatus maps a statemachine/domain validation failure to the
// client-facing HTTP status (spec §7: validation errors surface as 4xx).
func validationStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateID),
		errors.Is(err, domain.ErrUnknownPrinter),
		errors.Is(err, domain.ErrUnknownFilament),
		errors.Is(err, domain.ErrUnknownJob),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidWeight),
		errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrPrinterBusy),
		errors.Is(err, domain.ErrInsufficientFilament):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// submit runs cmd through the node, translating ErrNotLeader and
// validation failures to their wire shapes, and recording the outcome in
// ClientRequestsTotal.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, route string, cmd statemachine.Command) (statemachine.Result, bool) {
	result, err := s.node.SubmitCommand(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, consensus.ErrNotLeader) {
			metrics.ClientRequestsTotal.WithLabelValues(route, "not_leader").Inc()
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "This node is not the leader"})
			return statemachine.Result{}, false
		}
		if errors.Is(err, consensus.ErrQuorumNotReached) {
			metrics.ClientRequestsTotal.WithLabelValues(route, "quorum_failed").Inc()
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return statemachine.Result{}, false
		}
		metrics.ClientRequestsTotal.WithLabelValues(route, "rejected").Inc()
		writeJSON(w, validationStatus(err), map[string]string{"error": err.Error()})
		return statemachine.Result{}, false
	}
	metrics.ClientRequestsTotal.WithLabelValues(route, "accepted").Inc()
	return result, true
}

type addPrinterRequest struct {
	ID      string `json:"id"`
	Company string `json:"company"`
	Model   string `json:"model"`
}

func (s *Server) handleCreatePrinter(w http.ResponseWriter, r *http.Request) {
	var req addPrinterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if _, ok := s.submit(w, r, "printers", statemachine.Command{
		Kind: statemachine.AddPrinter, PrinterID: req.ID, Company: req.Company, Model: req.Model,
	}); !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleListPrinters(w http.ResponseWriter, r *http.Request) {
	state := s.node.Snapshot()
	out := make([]domain.Printer, 0, len(state.Printers))
	for _, p := range state.Printers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

type addFilamentRequest struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Color             string  `json:"color"`
	TotalWeightInGrams float64 `json:"total_weight_in_grams"`
}

type filamentView struct {
	ID                     string  `json:"id"`
	Type                   string  `json:"type"`
	Color                  string  `json:"color"`
	TotalWeightInGrams     float64 `json:"total_weight_in_grams"`
	RemainingWeightInGrams float64 `json:"remaining_weight_in_grams"`
}

func (s *Server) handleCreateFilament(w http.ResponseWriter, r *http.Request) {
	var req addFilamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if _, ok := s.submit(w, r, "filaments", statemachine.Command{
		Kind: statemachine.AddFilament, FilamentID: req.ID, FilamentType: req.Type,
		Color: req.Color, TotalWeightG: req.TotalWeightInGrams,
	}); !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleListFilaments(w http.ResponseWriter, r *http.Request) {
	state := s.node.Snapshot()
	out := make([]filamentView, 0, len(state.Filaments))
	for _, f := range state.Filaments {
		out = append(out, filamentView{
			ID: f.ID, Type: string(f.Type), Color: f.Color,
			TotalWeightInGrams: f.TotalWeightG, RemainingWeightInGrams: f.RemainingWeightG,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

type addJobRequest struct {
	ID                string  `json:"id"`
	PrinterID         string  `json:"printer_id"`
	FilamentID        string  `json:"filament_id"`
	Filepath          string  `json:"filepath"`
	PrintWeightInGrams float64 `json:"print_weight_in_grams"`
}

type jobView struct {
	ID                 string  `json:"id"`
	PrinterID          string  `json:"printer_id"`
	FilamentID         string  `json:"filament_id"`
	Filepath           string  `json:"filepath"`
	PrintWeightInGrams float64 `json:"print_weight_in_grams"`
	Status             string  `json:"status"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req addJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if _, ok := s.submit(w, r, "jobs", statemachine.Command{
		Kind: statemachine.AddJob, JobID: req.ID, JobPrinterID: req.PrinterID,
		JobFilamentID: req.FilamentID, Filepath: req.Filepath, PrintWeightG: req.PrintWeightInGrams,
	}); !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	state := s.node.Snapshot()
	out := make([]jobView, 0, len(state.Jobs))
	for _, j := range state.Jobs {
		out = append(out, jobView{
			ID: j.ID, PrinterID: j.PrinterID, FilamentID: j.FilamentID, Filepath: j.Filepath,
			PrintWeightInGrams: j.PrintWeightG, Status: string(j.Status),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

type updateJobStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateJobStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if _, ok := s.submit(w, r, "jobs.status", statemachine.Command{
		Kind: statemachine.UpdateJobStatus, UpdateJobID: id, NewStatus: req.Status,
	}); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

