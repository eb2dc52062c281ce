package model

import "time"

// Certification codes an engineer may hold. The fixed maintenance role
// requires both RLW and SAFETY; the rotating role requires none.
const (
	CertRegisteredLiftWorker = "RLW"
	CertSafetyCompetency     = "SAFETY"
)

// Engineer is a maintenance engineer scoped to a zone.
type Engineer struct {
	ID        int64  `gorm:"primaryKey"`
	ZoneID    int64  `gorm:"index;not null"`
	Name      string `gorm:"size:128;not null"`
	StaffCode string `gorm:"uniqueIndex;size:32;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Certifications []EngineerCertification `gorm:"foreignKey:EngineerID"`
}

// EngineerCertification is one certification held by one engineer.
type EngineerCertification struct {
	ID         int64  `gorm:"primaryKey"`
	EngineerID int64  `gorm:"index:idx_engineer_cert,unique;not null"`
	Code       string `gorm:"index:idx_engineer_cert,unique;size:32;not null"`
	CreatedAt  time.Time
}

// HasCertification reports whether the engineer holds the given code.
// Certifications must be preloaded.
func (e *Engineer) HasCertification(code string) bool {
	for _, c := range e.Certifications {
		if c.Code == code {
			return true
		}
	}
	return false
}

// QualifiedForFixedRole reports whether the engineer may be assigned as the
// fixed engineer of a schedule.
func (e *Engineer) QualifiedForFixedRole() bool {
	return e.HasCertification(CertRegisteredLiftWorker) && e.HasCertification(CertSafetyCompetency)
}
