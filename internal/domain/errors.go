package domain

import "errors"

// Validation errors returned by the state machine. These are surfaced
// verbatim to clients with HTTP 4xx (spec §7) and are never written to the
// replicated log.
var (
	ErrDuplicateID          = errors.New("DuplicateId")
	ErrUnknownPrinter       = errors.New("UnknownPrinter")
	ErrUnknownFilament      = errors.New("UnknownFilament")
	ErrUnknownJob           = errors.New("UnknownJob")
	ErrInvalidType          = errors.New("InvalidType")
	ErrInvalidWeight        = errors.New("InvalidWeight")
	ErrMissingField         = errors.New("MissingField")
	ErrIllegalTransition    = errors.New("IllegalTransition")
	ErrPrinterBusy          = errors.New("PrinterBusy")
	ErrInsufficientFilament = errors.New("InsufficientFilament")
)
