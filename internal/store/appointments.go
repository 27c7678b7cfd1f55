package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gobarber/backend/internal/domain"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// ActiveAt reports the non-canceled appointment occupying the provider's slot, if any.
	ActiveAt(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, bool, error)
	// Get loads an appointment together with its provider and user.
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// Save persists the cancellation of appt. It returns ErrConflict when the row
	// was canceled concurrently.
	Save(ctx context.Context, appt domain.Appointment) error
	ListActiveByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Appointment, error)
}

type UserRepository interface {
	ByID(ctx context.Context, id int64) (domain.User, error)
	ListProviders(ctx context.Context) ([]domain.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
}

type NotificationReader interface {
	// ListByUser returns up to limit notifications addressed to userID, newest first.
	ListByUser(ctx context.Context, userID int64, limit int64) ([]domain.Notification, error)
}
