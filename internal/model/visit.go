package model

import "time"

// VisitOutcome classifies a completed visit for reporting. It is derived
// at import/completion time and never feeds back into scheduling.
type VisitOutcome string

const (
	VisitOnTime       VisitOutcome = "ON_TIME"
	VisitLate         VisitOutcome = "LATE"
	VisitOverdue      VisitOutcome = "OVERDUE"
	VisitNotCompleted VisitOutcome = "NOT_COMPLETED"
)

// MaintenanceVisit is an actual-completion record, linked to a schedule
// when one can be identified and to the engineer who performed the work.
type MaintenanceVisit struct {
	ID          int64  `gorm:"primaryKey"`
	ScheduleID  *int64 `gorm:"index"`
	EquipmentID int64  `gorm:"index;not null"`
	EngineerID  int64  `gorm:"index;not null"`

	StartedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
	Outcome     VisitOutcome `gorm:"size:16;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Schedule  *Schedule
	Equipment Equipment
	Engineer  Engineer
}
