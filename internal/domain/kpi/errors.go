package kpi

import "errors"

var (
	ErrNotFound          = errors.New("kpi record not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrForbidden         = errors.New("actor not allowed to perform this transition")
	ErrMissingReason     = errors.New("rejection requires a reason")
	ErrConflict          = errors.New("kpi record was modified concurrently")
	ErrNotEditable       = errors.New("kpi record is not editable in its current status")
	ErrInvalidWeight     = errors.New("weight must be a fraction in [0,1] or a percent in (1,100]")
)
