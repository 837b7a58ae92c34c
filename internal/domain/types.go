package domain

// FilamentType is the material of a spool of filament.
type FilamentType string

const (
	PLA  FilamentType = "PLA"
	PETG FilamentType = "PETG"
	ABS  FilamentType = "ABS"
	TPU  FilamentType = "TPU"
)

// ValidFilamentType reports whether t is one of the known filament types.
func ValidFilamentType(t FilamentType) bool {
	switch t {
	case PLA, PETG, ABS, TPU:
		return true
	default:
		return false
	}
}

// JobStatus is the lifecycle state of a print job.
type JobStatus string

const (
	Queued    JobStatus = "Queued"
	Running   JobStatus = "Running"
	Done      JobStatus = "Done"
	Cancelled JobStatus = "Cancelled"
)

// Terminal reports whether s is an absorbing status (Done or Cancelled).
func (s JobStatus) Terminal() bool {
	return s == Done || s == Cancelled
}

// legalTransitions encodes the job status DAG from spec §3/§4.1:
// Queued -> Running | Cancelled; Running -> Done | Cancelled.
var legalTransitions = map[JobStatus]map[JobStatus]bool{
	Queued:  {Running: true, Cancelled: true},
	Running: {Done: true, Cancelled: true},
}

// CanTransition reports whether a job may move from 'from' to 'to'.
func CanTransition(from, to JobStatus) bool {
	next, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Printer is a registered 3D printer. Never deleted once created.
type Printer struct {
	ID      string `json:"id"`
	Company string `json:"company"`
	Model   string `json:"model"`
}

// Filament is a spool of material available for printing.
type Filament struct {
	ID               string       `json:"id"`
	Type             FilamentType `json:"type"`
	Color            string       `json:"color"`
	TotalWeightG     float64      `json:"total_weight_g"`
	RemainingWeightG float64      `json:"remaining_weight_g"`
}

// Job is a print job queued against a printer and a filament spool.
type Job struct {
	ID           string    `json:"id"`
	PrinterID    string    `json:"printer_id"`
	FilamentID   string    `json:"filament_id"`
	Filepath     string    `json:"filepath"`
	PrintWeightG float64   `json:"print_weight_g"`
	Status       JobStatus `json:"status"`
}

// State is the full, deterministic domain state of a single replica.
type State struct {
	Printers  map[string]Printer  `json:"printers"`
	Filaments map[string]Filament `json:"filaments"`
	Jobs      map[string]Job      `json:"jobs"`
}

// NewState returns an empty, ready-to-use State.
func NewState() *State {
	return &State{
		Printers:  make(map[string]Printer),
		Filaments: make(map[string]Filament),
		Jobs:      make(map[string]Job),
	}
}

// Clone returns a deep copy of s, suitable for handing to a reader (e.g. a
// /state response) without holding the node mutex while serializing.
func (s *State) Clone() *State {
	out := NewState()
	for k, v := range s.Printers {
		out.Printers[k] = v
	}
	for k, v := range s.Filaments {
		out.Filaments[k] = v
	}
	for k, v := range s.Jobs {
		out.Jobs[k] = v
	}
	return out
}

// ActiveWeightOnFilament sums print_weight_g over jobs referencing filamentID
// that are still in {Queued, Running} — the budget consumers of spec §4.1's
// InsufficientFilament check (invariant 6 in spec §8).
func (s *State) ActiveWeightOnFilament(filamentID string) float64 {
	var total float64
	for _, j := range s.Jobs {
		if j.FilamentID == filamentID && (j.Status == Queued || j.Status == Running) {
			total += j.PrintWeightG
		}
	}
	return total
}

// PrinterBusy reports whether any job on printerID is Queued or Running,
// optionally ignoring a specific job id (pass "" to ignore none).
func (s *State) PrinterBusy(printerID string, ignoreJobID string) bool {
	for id, j := range s.Jobs {
		if id == ignoreJobID {
			continue
		}
		if j.PrinterID == printerID && (j.Status == Queued || j.Status == Running) {
			return true
		}
	}
	return false
}

// PrinterRunning reports whether any job on printerID currently has status
// Running, optionally ignoring a specific job id.
func (s *State) PrinterRunning(printerID string, ignoreJobID string) bool {
	for id, j := range s.Jobs {
		if id == ignoreJobID {
			continue
		}
		if j.PrinterID == printerID && j.Status == Running {
			return true
		}
	}
	return false
}
