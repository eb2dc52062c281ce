package model

import (
	"time"

	"lift-maintenance-backend/internal/civdate"
)

// ScheduleStatus is the canonical six-state machine. "Late" is carried by
// the orthogonal IsLate flag, never by a distinct status value.
type ScheduleStatus string

const (
	StatusPlanned   ScheduleStatus = "PLANNED"
	StatusPending   ScheduleStatus = "PENDING"
	StatusSkipped   ScheduleStatus = "SKIPPED"
	StatusMissed    ScheduleStatus = "MISSED"
	StatusCompleted ScheduleStatus = "COMPLETED"
	StatusCancelled ScheduleStatus = "CANCELLED"
)

// TimeSlot is one of the three nightly service windows.
type TimeSlot string

const (
	Slot2300 TimeSlot = "SLOT_2300"
	Slot0130 TimeSlot = "SLOT_0130"
	Slot0330 TimeSlot = "SLOT_0330"
)

// Batch is the A/B workload grouping label, alternating every 14 days.
type Batch string

const (
	BatchA Batch = "A"
	BatchB Batch = "B"
)

// Schedule is one planned preventive-maintenance visit for one equipment
// unit. CurrentPlannedDate is non-null exactly while the schedule occupies
// a slot (PLANNED/PENDING); SKIPPED and MISSED hold no slot.
type Schedule struct {
	ID          int64 `gorm:"primaryKey"`
	EquipmentID int64 `gorm:"index;not null"`
	ZoneID      int64 `gorm:"index;not null"`

	// R0; fixed at creation, source of DueDate.
	BaselinePlannedDate civdate.DateKey `gorm:"size:10;not null"`
	// R1; null when the schedule holds no slot.
	CurrentPlannedDate *civdate.DateKey `gorm:"size:10;index"`
	// R0 + 14 days, immutable once set. Moving R1 never changes it.
	DueDate civdate.DateKey `gorm:"size:10;not null"`
	// Snapshot of R1 at the moment the schedule left active occupancy.
	LastSkippedDate *civdate.DateKey `gorm:"size:10"`

	TimeSlot     TimeSlot       `gorm:"size:16;not null"`
	Batch        Batch          `gorm:"size:1;not null"`
	Status       ScheduleStatus `gorm:"size:16;not null;index"`
	IsLate       bool           `gorm:"not null"`
	SkippedCount int            `gorm:"not null"`

	// External work-order reference, unique when present.
	WorkOrderNumber *string `gorm:"uniqueIndex;size:32"`

	FixedEngineerID    *int64 `gorm:"index"`
	RotatingEngineerID *int64 `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Equipment        Equipment `gorm:"constraint:OnDelete:CASCADE"`
	Zone             Zone
	FixedEngineer    *Engineer `gorm:"foreignKey:FixedEngineerID"`
	RotatingEngineer *Engineer `gorm:"foreignKey:RotatingEngineerID"`
}

// OccupiesSlot reports whether the status is one that legitimately holds a
// (date, slot) pair.
func (s *Schedule) OccupiesSlot() bool {
	return s.Status == StatusPlanned || s.Status == StatusPending
}

// Terminal reports whether no further transition out of the status exists.
func (s *Schedule) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusMissed || s.Status == StatusCancelled
}
