package model

import "time"

// EquipmentType distinguishes the two kinds of maintained units.
type EquipmentType string

const (
	EquipmentElevator  EquipmentType = "ELEVATOR"
	EquipmentEscalator EquipmentType = "ESCALATOR"
)

// Equipment is a single elevator or escalator unit. Immutable once created
// except for administrative edits; referenced by every Schedule.
type Equipment struct {
	ID     int64         `gorm:"primaryKey"`
	ZoneID int64         `gorm:"index;not null"`
	Number string        `gorm:"uniqueIndex;size:32;not null"` // e.g. HOK-E25
	Type   EquipmentType `gorm:"size:16;not null"`

	// Only flagged units may be scheduled into the 23:00 slot.
	EligibleForLateNightSlot bool `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Zone Zone `gorm:"constraint:OnDelete:CASCADE"`
}
