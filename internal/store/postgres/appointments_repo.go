package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/store"
)

const (
	pgUniqueViolation = "23505"

	activeSlotConstraint = "appointments_provider_slot_active_key"
)

type AppointmentRepo struct {
	db bun.IDB
}

func NewAppointmentRepo(db bun.IDB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Create inserts appt. A second active booking for the same provider slot is
// rejected by a partial unique index and reported as store.ErrConflict. When
// appt carries a caller-chosen id that already exists, the stored row is
// returned if it matches and store.ErrIdempotencyConflict otherwise.
func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:         appt.ID,
		UserID:     appt.UserID,
		ProviderID: appt.ProviderID,
		Date:       appt.Date.UTC(),
		Slot:       appt.Slot.UTC(),
	}

	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err == nil {
		return m, nil
	}

	switch classifyInsertError(err) {
	case errSlotTaken:
		return domain.Appointment{}, store.ErrConflict
	case errDuplicateID:
		var existing domain.Appointment
		selectErr := r.db.NewSelect().
			Model(&existing).
			Where("id = ?", m.ID).
			Limit(1).
			Scan(ctx)
		if selectErr != nil {
			return domain.Appointment{}, err
		}
		if !sameBooking(existing, m) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	return domain.Appointment{}, err
}

func (r *AppointmentRepo) ActiveAt(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, bool, error) {
	var row domain.Appointment
	err := r.db.NewSelect().
		Model(&row).
		Where("provider_id = ?", providerID).
		Where("slot = ?", slot.UTC()).
		Where("canceled_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, false, nil
		}
		return domain.Appointment{}, false, err
	}
	return row, true, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var row domain.Appointment
	err := r.db.NewSelect().
		Model(&row).
		Relation("Provider").
		Relation("User").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return row, nil
}

// Save writes appt's cancellation. The update only applies while the row is
// still active, so concurrent cancellations resolve to a single winner.
func (r *AppointmentRepo) Save(ctx context.Context, appt domain.Appointment) error {
	m := domain.Appointment{ID: appt.ID, CanceledAt: appt.CanceledAt}

	res, err := r.db.NewUpdate().
		Model(&m).
		Column("canceled_at", "updated_at").
		WherePK().
		Where("canceled_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	exists, err := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", appt.ID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r *AppointmentRepo) ListActiveByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Provider").
		Relation("Provider.Avatar").
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.canceled_at IS NULL").
		OrderExpr("?TableAlias.date ASC, ?TableAlias.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type insertFailure int

const (
	errOther insertFailure = iota
	errSlotTaken
	errDuplicateID
)

func classifyInsertError(err error) insertFailure {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return errOther
	}
	if pgErr.ConstraintName == activeSlotConstraint {
		return errSlotTaken
	}
	return errDuplicateID
}

func sameBooking(existing, want domain.Appointment) bool {
	return existing.UserID == want.UserID &&
		existing.ProviderID == want.ProviderID &&
		existing.Date.Equal(want.Date.Truncate(time.Microsecond))
}
