package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers pick the zones whose schedule changes they want to hear about.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Zones []*Zone `gorm:"many2many:subscription_zone_mapping;"`
}
