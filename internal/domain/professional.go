package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Professional holds the scheduling settings the engine reads: the buffer
// added after every service and the auto-confirm flag. Identity comes from
// the surrounding account system, so the id is an opaque string.
type Professional struct {
	bun.BaseModel `bun:"table:professionals"`

	ID                  string    `bun:"id,pk"`
	DisplayName         string    `bun:"display_name"`
	BufferMinutes       int       `bun:"buffer_minutes,notnull"`
	AutoConfirmBookings bool      `bun:"auto_confirm_bookings,notnull"`
	Active              bool      `bun:"active,notnull"`
	CreatedAt           time.Time `bun:"created_at,notnull"`
	UpdatedAt           time.Time `bun:"updated_at,notnull"`
}

func (p *Professional) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

// Buffer returns the configured buffer as a duration, never negative.
func (p *Professional) Buffer() time.Duration {
	if p.BufferMinutes <= 0 {
		return 0
	}
	return time.Duration(p.BufferMinutes) * time.Minute
}
