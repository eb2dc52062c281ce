package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/policy"
	"lift-maintenance-backend/internal/store"
)

// MaxSearchWindowDays bounds the push-forward search when the displaced
// schedule has no usable due date.
const MaxSearchWindowDays = 28

// moveAttempts bounds retries of the slot search when a concurrent move
// grabs the chosen slot between the search and the write.
const moveAttempts = 3

// Notifier receives fire-and-forget notifications after successful
// mutations. Dispatch failures never roll anything back.
type Notifier interface {
	ScheduleChanged(zoneID, scheduleID int64, event string)
}

// Engine is the slot reallocation engine. It is stateless per request;
// all multi-record effects commit inside a single store transaction.
type Engine struct {
	store    store.Store
	now      func() time.Time
	notifier Notifier
}

// NewEngine creates an engine. now may be nil for wall-clock time;
// notifier may be nil to disable dispatch.
func NewEngine(s store.Store, now func() time.Time, notifier Notifier) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, now: now, notifier: notifier}
}

func (e *Engine) notify(zoneID, scheduleID int64, event string) {
	if e.notifier != nil {
		e.notifier.ScheduleChanged(zoneID, scheduleID, event)
	}
}

// MoveRequest describes one move operation.
type MoveRequest struct {
	ScheduleID              int64
	TargetDate              civdate.DateKey
	TargetSlot              model.TimeSlot
	SwapWithID              *int64
	AllowIneligibleLateSlot bool
}

// MoveResult reports the outcome of a successful move. Exactly one of
// Swapped/Pushed is set when a conflict was resolved.
type MoveResult struct {
	Moved        *model.Schedule
	Swapped      *model.Schedule
	Pushed       *model.Schedule
	PushedToDate civdate.DateKey
	Warning      string
}

// errOccupancyConflict signals that the occupancy read inside the
// transaction no longer matches what the move was computed against. The
// whole transaction is retried a bounded number of times.
var errOccupancyConflict = errors.New("slot occupancy changed during move")

// Move reschedules a schedule to a target date and slot, resolving a
// conflict by swap or push-forward. Statuses eligible to move are PLANNED,
// PENDING and SKIPPED; COMPLETED and MISSED never move.
func (e *Engine) Move(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	sched, err := e.store.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %d: %w", req.ScheduleID, ErrNotFound)
	}

	switch sched.Status {
	case model.StatusCompleted, model.StatusMissed:
		return nil, fmt.Errorf("schedule %d is %s: %w", sched.ID, sched.Status, ErrImmutableState)
	case model.StatusPlanned, model.StatusPending, model.StatusSkipped:
	default:
		return nil, fmt.Errorf("schedule %d is %s: %w", sched.ID, sched.Status, ErrInvalidTransition)
	}

	if _, err := civdate.Parse(string(req.TargetDate)); err != nil {
		return nil, err
	}
	today := civdate.Today(e.now())
	if civdate.Compare(req.TargetDate, today) < 0 {
		return nil, fmt.Errorf("target %s is before %s: %w", req.TargetDate, today, ErrPastDate)
	}

	// Unlike creation, a move carries the slot verbatim into the occupancy
	// key; an out-of-enum value would dodge the conflict search while
	// mapping onto a real wall-clock window.
	if !policy.ValidSlot(req.TargetSlot) {
		return nil, fmt.Errorf("time slot %q: %w", req.TargetSlot, ErrInvalidSlot)
	}

	var warning string
	if req.TargetSlot == model.Slot2300 && !policy.CanUseLateNightSlot(&sched.Equipment) {
		if !req.AllowIneligibleLateSlot {
			return nil, fmt.Errorf("equipment %s: %w", sched.Equipment.Number, ErrSlotEligibility)
		}
		warning = fmt.Sprintf("equipment %s is not eligible for the late-night slot; override applied", sched.Equipment.Number)
	}

	var result *MoveResult
	for attempt := 0; attempt < moveAttempts; attempt++ {
		result = nil
		err = e.store.Transaction(ctx, func(tx store.Store) error {
			r, txErr := e.moveTx(ctx, tx, req)
			if txErr != nil {
				return txErr
			}
			result = r
			return nil
		})
		if errors.Is(err, errOccupancyConflict) {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, errOccupancyConflict) {
			return nil, fmt.Errorf("schedule %d: %w", req.ScheduleID, ErrMoveConflict)
		}
		return nil, err
	}

	result.Warning = warning
	e.notify(result.Moved.ZoneID, result.Moved.ID, "moved")
	if result.Pushed != nil {
		e.notify(result.Pushed.ZoneID, result.Pushed.ID, "pushed")
	}
	if result.Swapped != nil {
		e.notify(result.Swapped.ZoneID, result.Swapped.ID, "swapped")
	}
	return result, nil
}

// moveTx performs one attempt of the move inside a transaction. Every read
// it relies on happens inside the same transaction as the writes.
func (e *Engine) moveTx(ctx context.Context, tx store.Store, req MoveRequest) (*MoveResult, error) {
	// Fresh read: the pre-checks outside the transaction may be stale.
	mover, err := tx.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}
	if mover == nil {
		return nil, fmt.Errorf("schedule %d: %w", req.ScheduleID, ErrNotFound)
	}
	switch mover.Status {
	case model.StatusPlanned, model.StatusPending, model.StatusSkipped:
	default:
		return nil, errOccupancyConflict
	}

	var conflicting *model.Schedule
	if req.SwapWithID != nil {
		conflicting, err = tx.GetSchedule(ctx, *req.SwapWithID)
		if err != nil {
			return nil, err
		}
		if conflicting == nil {
			return nil, fmt.Errorf("swap target %d: %w", *req.SwapWithID, ErrNotFound)
		}
	}

	leavingPending := mover.Status == model.StatusPending
	originalDate := mover.CurrentPlannedDate
	originalSlot := mover.TimeSlot

	switch {
	case conflicting != nil && mover.Status == model.StatusPlanned:
		return e.swapTx(ctx, tx, mover, conflicting, req, originalDate, originalSlot)
	case conflicting != nil:
		return e.pushForwardTx(ctx, tx, mover, conflicting, req, leavingPending)
	default:
		return e.occupyTx(ctx, tx, mover, req, leavingPending)
	}
}

// swapTx exchanges the (date, slot) pairs of two PLANNED schedules. The
// mover takes the target; the conflicting schedule takes the mover's
// original position. Each side's IsLate is recomputed against its own due
// date.
func (e *Engine) swapTx(ctx context.Context, tx store.Store, mover, conflicting *model.Schedule, req MoveRequest, originalDate *civdate.DateKey, originalSlot model.TimeSlot) (*MoveResult, error) {
	if originalDate == nil || !conflicting.OccupiesSlot() {
		// PLANNED implies occupancy, and only a slot-holding schedule can
		// give its position up in a swap. Either being false means the
		// records were mutated underneath us.
		return nil, errOccupancyConflict
	}

	// The target must be held by the named conflicting schedule, and the
	// mover's original position must not have been taken by a third party.
	occ, err := tx.FindOccupant(ctx, mover.ZoneID, req.TargetDate, req.TargetSlot, mover.ID)
	if err != nil {
		return nil, err
	}
	if occ != nil && occ.ID != conflicting.ID {
		return nil, errOccupancyConflict
	}
	occ, err = tx.FindOccupant(ctx, conflicting.ZoneID, *originalDate, originalSlot, mover.ID)
	if err != nil {
		return nil, err
	}
	if occ != nil && occ.ID != conflicting.ID {
		return nil, errOccupancyConflict
	}

	target := req.TargetDate
	mover.CurrentPlannedDate = &target
	mover.TimeSlot = req.TargetSlot
	mover.Status = model.StatusPlanned
	mover.IsLate = policy.IsAtRisk(target, mover.DueDate, model.StatusPlanned)

	conflicting.CurrentPlannedDate = originalDate
	conflicting.TimeSlot = originalSlot
	conflicting.Status = model.StatusPlanned
	conflicting.IsLate = policy.IsAtRisk(*originalDate, conflicting.DueDate, model.StatusPlanned)

	if err := tx.SaveSchedule(ctx, mover); err != nil {
		return nil, err
	}
	if err := tx.SaveSchedule(ctx, conflicting); err != nil {
		return nil, err
	}
	return &MoveResult{Moved: mover, Swapped: conflicting}, nil
}

// pushForwardTx rescues a PENDING/SKIPPED schedule into the target slot and
// relocates the displaced occupant to the nearest later free slot before
// its own due date.
func (e *Engine) pushForwardTx(ctx context.Context, tx store.Store, mover, conflicting *model.Schedule, req MoveRequest, leavingPending bool) (*MoveResult, error) {
	if !conflicting.OccupiesSlot() {
		return nil, errOccupancyConflict
	}

	// The named conflict must still be the schedule actually holding the
	// target slot; a third occupant means the caller's view was stale.
	occ, err := tx.FindOccupant(ctx, mover.ZoneID, req.TargetDate, req.TargetSlot, mover.ID)
	if err != nil {
		return nil, err
	}
	if occ != nil && occ.ID != conflicting.ID {
		return nil, errOccupancyConflict
	}

	searchFrom, err := civdate.AddDays(req.TargetDate, 1)
	if err != nil {
		return nil, err
	}

	horizon := conflicting.DueDate
	if horizon == "" {
		horizon, err = civdate.AddDays(req.TargetDate, MaxSearchWindowDays)
		if err != nil {
			return nil, err
		}
	}

	newDate, newSlot, err := e.searchFreeSlot(ctx, tx, conflicting, searchFrom, horizon)
	if err != nil {
		return nil, err
	}

	// Re-validate the chosen slot immediately before the write; a
	// concurrent commit may have taken it since the scan read it.
	occ, err = tx.FindOccupant(ctx, conflicting.ZoneID, newDate, newSlot, conflicting.ID)
	if err != nil {
		return nil, err
	}
	if occ != nil {
		return nil, errOccupancyConflict
	}

	target := req.TargetDate
	if leavingPending && mover.CurrentPlannedDate != nil {
		snapshot := *mover.CurrentPlannedDate
		mover.LastSkippedDate = &snapshot
		mover.SkippedCount++
	}
	mover.CurrentPlannedDate = &target
	mover.TimeSlot = req.TargetSlot
	mover.Status = model.StatusPlanned
	mover.IsLate = policy.IsAtRisk(target, mover.DueDate, model.StatusPlanned)

	pushedDate := newDate
	conflicting.CurrentPlannedDate = &pushedDate
	conflicting.TimeSlot = newSlot
	// A SKIPPED occupant being pushed forward re-enters PLANNED.
	conflicting.Status = model.StatusPlanned
	conflicting.IsLate = policy.IsAtRisk(pushedDate, conflicting.DueDate, model.StatusPlanned)

	if err := tx.SaveSchedule(ctx, mover); err != nil {
		return nil, err
	}
	if err := tx.SaveSchedule(ctx, conflicting); err != nil {
		return nil, err
	}
	return &MoveResult{Moved: mover, Pushed: conflicting, PushedToDate: newDate}, nil
}

// searchFreeSlot scans day by day from searchFrom through horizon for the
// first (date, slot) free in the schedule's zone. The late-night slot is
// tried first only when the displaced equipment is eligible for it.
func (e *Engine) searchFreeSlot(ctx context.Context, tx store.Store, sched *model.Schedule, searchFrom, horizon civdate.DateKey) (civdate.DateKey, model.TimeSlot, error) {
	slots := policy.SlotSearchOrder(sched.Equipment.EligibleForLateNightSlot)

	for d := searchFrom; civdate.Compare(d, horizon) <= 0; {
		for _, slot := range slots {
			occ, err := tx.FindOccupant(ctx, sched.ZoneID, d, slot, sched.ID)
			if err != nil {
				return "", "", err
			}
			if occ == nil {
				return d, slot, nil
			}
		}
		next, err := civdate.AddDays(d, 1)
		if err != nil {
			return "", "", err
		}
		d = next
	}
	return "", "", &NoSlotError{From: searchFrom, Horizon: horizon}
}

// occupyTx places the mover in the target slot with no conflict partner
// named. The slot must actually be free; an occupant found inside the
// transaction fails the move rather than double-booking the slot.
func (e *Engine) occupyTx(ctx context.Context, tx store.Store, mover *model.Schedule, req MoveRequest, leavingPending bool) (*MoveResult, error) {
	occ, err := tx.FindOccupant(ctx, mover.ZoneID, req.TargetDate, req.TargetSlot, mover.ID)
	if err != nil {
		return nil, err
	}
	if occ != nil {
		return nil, &NoSlotError{From: req.TargetDate, Horizon: req.TargetDate}
	}

	target := req.TargetDate
	if leavingPending && mover.CurrentPlannedDate != nil {
		snapshot := *mover.CurrentPlannedDate
		mover.LastSkippedDate = &snapshot
		mover.SkippedCount++
	}
	mover.CurrentPlannedDate = &target
	mover.TimeSlot = req.TargetSlot
	mover.Status = model.StatusPlanned
	mover.IsLate = policy.IsAtRisk(target, mover.DueDate, model.StatusPlanned)

	if err := tx.SaveSchedule(ctx, mover); err != nil {
		return nil, err
	}
	return &MoveResult{Moved: mover}, nil
}
