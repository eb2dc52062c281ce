package model

import "time"

// Zone represents a geographic/organizational grouping. Equipment and
// engineers are both scoped to a zone; slot occupancy is resolved per zone.
type Zone struct {
	ID        int64     `gorm:"primaryKey"`
	Code      string    `gorm:"uniqueIndex;size:32;not null"`
	Name      string    `gorm:"size:128;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Equipment []Equipment `gorm:"foreignKey:ZoneID"`
}
