package sched

import (
	"errors"
	"fmt"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
)

// Sentinel errors for the scheduling operations. Handlers match these with
// errors.Is to pick a response status; none of them are retried here.
var (
	// ErrNotFound: the referenced schedule, equipment or engineer does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition: the schedule's status forbids the requested operation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrImmutableState: the schedule is in a terminal evidence state.
	ErrImmutableState = errors.New("schedule state is immutable")
	// ErrPastDate: the target date is before today in the fixed zone.
	ErrPastDate = errors.New("target date is in the past")
	// ErrSlotEligibility: equipment not eligible for the late-night slot.
	// Soft-blocking; an explicit override degrades it to a warning.
	ErrSlotEligibility = errors.New("equipment not eligible for late-night slot")
	// ErrInvalidSlot: the time slot is none of the three known windows.
	// Moves take the slot verbatim, so out-of-enum values are rejected
	// here rather than silently normalized.
	ErrInvalidSlot = errors.New("unknown time slot")
	// ErrMoveConflict: concurrent moves kept invalidating the occupancy
	// reads across every retry. The request itself may be fine; the caller
	// can retry it.
	ErrMoveConflict = errors.New("conflicting concurrent move")
	// ErrNoAvailableSlot: the push-forward search exhausted its horizon.
	ErrNoAvailableSlot = errors.New("no available slot before deadline")
	// ErrDuplicateWorkOrder: the work-order number is already taken.
	ErrDuplicateWorkOrder = errors.New("duplicate work order number")
	// ErrUnqualifiedEngineer: the fixed role needs RLW and SAFETY certifications.
	ErrUnqualifiedEngineer = errors.New("engineer not qualified for fixed role")
	// ErrCycleViolation: the candidate date breaks the 14-day cycle gap.
	ErrCycleViolation = errors.New("maintenance cycle gap exceeded")
)

// CycleViolationError carries the offending prior schedule so the operator
// sees which visit the candidate date conflicts with.
type CycleViolationError struct {
	Prior         *model.Schedule
	CandidateDate civdate.DateKey
	GapDays       int
}

func (e *CycleViolationError) Error() string {
	return fmt.Sprintf("maintenance cycle gap exceeded: %d days between %s and prior schedule %d",
		e.GapDays, e.CandidateDate, e.Prior.ID)
}

func (e *CycleViolationError) Unwrap() error { return ErrCycleViolation }

// NoSlotError carries the exhausted search horizon.
type NoSlotError struct {
	From    civdate.DateKey
	Horizon civdate.DateKey
}

func (e *NoSlotError) Error() string {
	return fmt.Sprintf("no available slot between %s and %s", e.From, e.Horizon)
}

func (e *NoSlotError) Unwrap() error { return ErrNoAvailableSlot }
