package statemachine

import (
	"fmt"

	"github.com/cuemby/printforge/internal/domain"
)

// Apply applies cmd to state, mutating it in place on success. It returns a
// typed validation error (see domain.Err*) on failure, leaving state
// unchanged; validation failures never consume a log slot (spec §4.3 step 1).
func Apply(state *domain.State, cmd Command) (Result, error) {
	switch cmd.Kind {
	case AddPrinter:
		return applyAddPrinter(state, cmd)
	case AddFilament:
		return applyAddFilament(state, cmd)
	case AddJob:
		return applyAddJob(state, cmd)
	case UpdateJobStatus:
		return applyUpdateJobStatus(state, cmd)
	default:
		return Result{}, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

func applyAddPrinter(state *domain.State, cmd Command) (Result, error) {
	if cmd.PrinterID == "" || cmd.Company == "" || cmd.Model == "" {
		return Result{}, domain.ErrMissingField
	}
	if _, exists := state.Printers[cmd.PrinterID]; exists {
		return Result{}, domain.ErrDuplicateID
	}
	state.Printers[cmd.PrinterID] = domain.Printer{
		ID:      cmd.PrinterID,
		Company: cmd.Company,
		Model:   cmd.Model,
	}
	return Result{Kind: AddPrinter}, nil
}

func applyAddFilament(state *domain.State, cmd Command) (Result, error) {
	if cmd.FilamentID == "" || cmd.FilamentType == "" || cmd.Color == "" {
		return Result{}, domain.ErrMissingField
	}
	if _, exists := state.Filaments[cmd.FilamentID]; exists {
		return Result{}, domain.ErrDuplicateID
	}
	ft := domain.FilamentType(cmd.FilamentType)
	if !domain.ValidFilamentType(ft) {
		return Result{}, domain.ErrInvalidType
	}
	if cmd.TotalWeightG <= 0 {
		return Result{}, domain.ErrInvalidWeight
	}
	state.Filaments[cmd.FilamentID] = domain.Filament{
		ID:               cmd.FilamentID,
		Type:             ft,
		Color:            cmd.Color,
		TotalWeightG:     cmd.TotalWeightG,
		RemainingWeightG: cmd.TotalWeightG,
	}
	return Result{Kind: AddFilament}, nil
}

func applyAddJob(state *domain.State, cmd Command) (Result, error) {
	if cmd.JobID == "" || cmd.JobPrinterID == "" || cmd.JobFilamentID == "" ||
		cmd.Filepath == "" || cmd.PrintWeightG <= 0 {
		return Result{}, domain.ErrMissingField
	}
	if _, exists := state.Jobs[cmd.JobID]; exists {
		return Result{}, domain.ErrDuplicateID
	}
	printer, ok := state.Printers[cmd.JobPrinterID]
	if !ok {
		return Result{}, domain.ErrUnknownPrinter
	}
	filament, ok := state.Filaments[cmd.JobFilamentID]
	if !ok {
		return Result{}, domain.ErrUnknownFilament
	}
	_ = printer
	budget := filament.RemainingWeightG - state.ActiveWeightOnFilament(cmd.JobFilamentID)
	if cmd.PrintWeightG > budget {
		return Result{}, domain.ErrInsufficientFilament
	}
	if state.PrinterBusy(cmd.JobPrinterID, "") {
		return Result{}, domain.ErrPrinterBusy
	}
	state.Jobs[cmd.JobID] = domain.Job{
		ID:           cmd.JobID,
		PrinterID:    cmd.JobPrinterID,
		FilamentID:   cmd.JobFilamentID,
		Filepath:     cmd.Filepath,
		PrintWeightG: cmd.PrintWeightG,
		Status:       domain.Queued,
	}
	return Result{Kind: AddJob}, nil
}

func applyUpdateJobStatus(state *domain.State, cmd Command) (Result, error) {
	job, ok := state.Jobs[cmd.UpdateJobID]
	if !ok {
		return Result{}, domain.ErrUnknownJob
	}
	newStatus := domain.JobStatus(cmd.NewStatus)
	if !domain.CanTransition(job.Status, newStatus) {
		return Result{}, domain.ErrIllegalTransition
	}
	if newStatus == domain.Running && state.PrinterRunning(job.PrinterID, job.ID) {
		return Result{}, domain.ErrPrinterBusy
	}

	becomingDone := newStatus == domain.Done
	job.Status = newStatus
	state.Jobs[job.ID] = job

	if becomingDone {
		filament, ok := state.Filaments[job.FilamentID]
		if ok {
			remaining := filament.RemainingWeightG - job.PrintWeightG
			if remaining < 0 {
				remaining = 0
			}
			filament.RemainingWeightG = remaining
			state.Filaments[filament.ID] = filament
		}
	}
	return Result{Kind: UpdateJobStatus}, nil
}
