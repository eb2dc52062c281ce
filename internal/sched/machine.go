package sched

import (
	"context"
	"fmt"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/policy"
	"lift-maintenance-backend/internal/store"
)

// ValidateAction is the operator's verdict on a PENDING schedule.
type ValidateAction string

const (
	ActionCompleted    ValidateAction = "completed"
	ActionToReschedule ValidateAction = "to_reschedule"
)

// Validate applies an operator validation to a PENDING schedule.
//
// "completed" transitions to COMPLETED with IsLate taken from the risk
// classifier evaluated against the date that was current at completion. A
// visit record is written when an engineer is assigned.
//
// "to_reschedule" transitions to MISSED when today is past the due date
// (no further rescheduling, skip counter untouched) and to SKIPPED
// otherwise (counter incremented). Both snapshot the planned date into
// LastSkippedDate and clear the slot occupancy.
func (e *Engine) Validate(ctx context.Context, scheduleID int64, action ValidateAction) (*model.Schedule, error) {
	switch action {
	case ActionCompleted, ActionToReschedule:
	default:
		return nil, fmt.Errorf("unknown validation action %q: %w", action, ErrInvalidTransition)
	}

	var out *model.Schedule
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if sched == nil {
			return fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
		}
		if sched.Terminal() {
			return fmt.Errorf("schedule %d is %s: %w", sched.ID, sched.Status, ErrImmutableState)
		}
		if sched.Status != model.StatusPending {
			return fmt.Errorf("schedule %d is %s, validation requires PENDING: %w", sched.ID, sched.Status, ErrInvalidTransition)
		}

		switch action {
		case ActionCompleted:
			err = e.completeTx(ctx, tx, sched)
		case ActionToReschedule:
			err = e.rescheduleTx(ctx, tx, sched)
		}
		if err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(out.ZoneID, out.ID, "validated")
	return out, nil
}

func (e *Engine) completeTx(ctx context.Context, tx store.Store, sched *model.Schedule) error {
	// Lateness is judged against the planned date current at completion,
	// evaluated as if still PLANNED, then frozen into the record.
	if sched.CurrentPlannedDate != nil {
		sched.IsLate = policy.IsAtRisk(*sched.CurrentPlannedDate, sched.DueDate, model.StatusPlanned)
	}
	sched.Status = model.StatusCompleted
	if err := tx.SaveSchedule(ctx, sched); err != nil {
		return err
	}

	engineerID := sched.FixedEngineerID
	if engineerID == nil {
		engineerID = sched.RotatingEngineerID
	}
	if engineerID == nil || sched.CurrentPlannedDate == nil {
		return nil
	}

	hour, minute := policy.SlotWallClock(sched.TimeSlot)
	startedAt, err := civdate.Compose(*sched.CurrentPlannedDate, hour, minute)
	if err != nil {
		return err
	}
	completedAt := e.now()
	outcome := model.VisitOnTime
	if sched.IsLate {
		outcome = model.VisitLate
	}
	return tx.CreateVisit(ctx, &model.MaintenanceVisit{
		ScheduleID:  &sched.ID,
		EquipmentID: sched.EquipmentID,
		EngineerID:  *engineerID,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
		Outcome:     outcome,
	})
}

func (e *Engine) rescheduleTx(ctx context.Context, tx store.Store, sched *model.Schedule) error {
	today := civdate.Today(e.now())

	if sched.CurrentPlannedDate != nil {
		snapshot := *sched.CurrentPlannedDate
		sched.LastSkippedDate = &snapshot
	}
	sched.CurrentPlannedDate = nil

	if civdate.Compare(today, sched.DueDate) > 0 {
		sched.Status = model.StatusMissed
	} else {
		sched.Status = model.StatusSkipped
		sched.SkippedCount++
	}
	sched.IsLate = false
	return tx.SaveSchedule(ctx, sched)
}

// Cancel soft-deletes a schedule. COMPLETED and MISSED are evidence for
// statistics and may never be cancelled; neither may a schedule already
// referenced by a completed visit.
func (e *Engine) Cancel(ctx context.Context, scheduleID int64) (*model.Schedule, error) {
	var out *model.Schedule
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		sched, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if sched == nil {
			return fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
		}
		switch sched.Status {
		case model.StatusCompleted, model.StatusMissed:
			return fmt.Errorf("schedule %d is %s: %w", sched.ID, sched.Status, ErrImmutableState)
		case model.StatusCancelled:
			return fmt.Errorf("schedule %d already cancelled: %w", sched.ID, ErrInvalidTransition)
		}

		visits, err := tx.VisitCountForSchedule(ctx, sched.ID)
		if err != nil {
			return err
		}
		if visits > 0 {
			return fmt.Errorf("schedule %d has %d recorded visits: %w", sched.ID, visits, ErrInvalidTransition)
		}

		sched.Status = model.StatusCancelled
		if err := tx.SaveSchedule(ctx, sched); err != nil {
			return err
		}
		out = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
