package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID     int64      `bun:"user_id,notnull"`
	ProviderID int64      `bun:"provider_id,notnull"`
	Date       time.Time  `bun:"date,notnull"`
	Slot       time.Time  `bun:"slot,notnull"`
	CanceledAt *time.Time `bun:"canceled_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`

	Provider *User `bun:"rel:belongs-to,join:provider_id=id"`
	User     *User `bun:"rel:belongs-to,join:user_id=id"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Canceled() bool {
	return a.CanceledAt != nil
}

// SlotOf returns the start of the clock hour containing t, in t's location.
// Two bookings for the same provider collide when their slots are equal.
func SlotOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
