package models

import "time"

// ModelRegistry lists every model handled by --auto-migrate.
var ModelRegistry = []interface{}{
	&WaitlistEntry{},
}

// WaitlistEntry is one pre-registration, unique per normalized email.
//
// Token stays populated after confirmation so that a second click on the
// same link resolves to the same, already confirmed, entry.
type WaitlistEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Token     *string   `gorm:"type:varchar(64);uniqueIndex"`
	Confirmed bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (WaitlistEntry) TableName() string { return "waitlist" }

// IsPending reports whether the entry still awaits confirmation.
func (e *WaitlistEntry) IsPending() bool {
	return !e.Confirmed
}
