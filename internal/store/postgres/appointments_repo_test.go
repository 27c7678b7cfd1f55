package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gobarber/backend/internal/domain"
)

func TestClassifyInsertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want insertFailure
	}{
		{
			name: "active slot index",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "appointments_provider_slot_active_key"},
			want: errSlotTaken,
		},
		{
			name: "wrapped active slot index",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_provider_slot_active_key"}),
			want: errSlotTaken,
		},
		{
			name: "primary key",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"},
			want: errDuplicateID,
		},
		{
			name: "foreign key",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "appointments_provider_id_fkey"},
			want: errOther,
		},
		{
			name: "not a postgres error",
			err:  errors.New("connection reset"),
			want: errOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyInsertError(tt.err); got != tt.want {
				t.Fatalf("classifyInsertError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameBooking(t *testing.T) {
	date := time.Date(2024, 5, 1, 14, 7, 3, 123456789, time.UTC)
	stored := domain.Appointment{UserID: 1, ProviderID: 7, Date: date.Truncate(time.Microsecond)}

	if !sameBooking(stored, domain.Appointment{UserID: 1, ProviderID: 7, Date: date}) {
		t.Fatalf("expected sub-microsecond difference to match")
	}
	if sameBooking(stored, domain.Appointment{UserID: 1, ProviderID: 8, Date: date}) {
		t.Fatalf("expected different provider to mismatch")
	}
	if sameBooking(stored, domain.Appointment{UserID: 1, ProviderID: 7, Date: date.Add(time.Hour)}) {
		t.Fatalf("expected different date to mismatch")
	}
}
