package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"gobarber/backend/internal/datefmt"
	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/store"
)

type fakeUsers struct {
	users map[int64]domain.User
	err   error
	calls []int64
}

func (f *fakeUsers) ByID(ctx context.Context, id int64) (domain.User, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

// memorySlots keeps committed appointments so tests can book the same slot twice.
type memorySlots struct {
	active []domain.Appointment
	err    error
	calls  int
}

func (m *memorySlots) ActiveAt(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, bool, error) {
	m.calls++
	if m.err != nil {
		return domain.Appointment{}, false, m.err
	}
	for _, a := range m.active {
		if a.ProviderID == providerID && a.Slot.Equal(slot) && !a.Canceled() {
			return a, true, nil
		}
	}
	return domain.Appointment{}, false, nil
}

type panicSlots struct{}

func (panicSlots) ActiveAt(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, bool, error) {
	panic("ActiveAt must not be called")
}

func newUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]domain.User{
		1: {ID: 1, Name: "Diego", Email: "diego@example.com"},
		2: {ID: 2, Name: "Clara", Email: "clara@example.com"},
		7: {ID: 7, Name: "Barbearia Sete", Email: "sete@example.com", IsProvider: true},
	}}
}

func utcFormatter() datefmt.Formatter {
	return datefmt.New(datefmt.PortugueseBR, time.UTC)
}

func TestEvaluateBooking_TruncatesSlotAndKeepsRequestedDate(t *testing.T) {
	slots := &memorySlots{}
	p := NewPolicy(newUsers(), slots, utcFormatter(), 0)

	requested := time.Date(2024, 5, 1, 14, 7, 0, 0, time.UTC)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	got, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: 7, Date: requested}, now)
	if err != nil {
		t.Fatalf("EvaluateBooking error: %v", err)
	}
	if !got.Appointment.Date.Equal(requested) {
		t.Fatalf("date = %v, want %v", got.Appointment.Date, requested)
	}
	wantSlot := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	if !got.Appointment.Slot.Equal(wantSlot) {
		t.Fatalf("slot = %v, want %v", got.Appointment.Slot, wantSlot)
	}
	if got.Appointment.UserID != 1 || got.Appointment.ProviderID != 7 {
		t.Fatalf("parties = %d/%d, want 1/7", got.Appointment.UserID, got.Appointment.ProviderID)
	}
	if got.Notification.UserID != 7 {
		t.Fatalf("notification user = %d, want 7", got.Notification.UserID)
	}
	if !strings.Contains(got.Notification.Content, "dia 01 de Mai") {
		t.Fatalf("notification content = %q, want it to contain %q", got.Notification.Content, "dia 01 de Mai")
	}
	if !strings.Contains(got.Notification.Content, "Diego") {
		t.Fatalf("notification content = %q, want requester name", got.Notification.Content)
	}
	if !strings.Contains(got.Notification.Content, "14:00h") {
		t.Fatalf("notification content = %q, want the slot hour rather than the requested minute", got.Notification.Content)
	}
}

func TestEvaluateBooking_PastDateRejected(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
	}{
		{name: "yesterday", date: now.Add(-24 * time.Hour)},
		{name: "one minute ago", date: now.Add(-time.Minute)},
		{name: "later in the current hour", date: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 0)
			got, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: 7, Date: tt.date}, now)
			if !errors.Is(err, ErrPastDate) {
				t.Fatalf("err = %v, want %v", err, ErrPastDate)
			}
			if got != (BookingDecision{}) {
				t.Fatalf("expected no descriptors, got %+v", got)
			}
		})
	}
}

func TestEvaluateBooking_SlotStartingNowIsAccepted(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := NewPolicy(newUsers(), &memorySlots{}, utcFormatter(), 0)

	_, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: 7, Date: now.Add(20 * time.Minute)}, now)
	if err != nil {
		t.Fatalf("EvaluateBooking error: %v", err)
	}
}

func TestEvaluateBooking_InvalidProviderStopsBeforeOtherChecks(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		providerID int64
		date       time.Time
	}{
		{name: "unknown user", providerID: 99, date: now.Add(4 * time.Hour)},
		{name: "user is not a provider", providerID: 2, date: now.Add(4 * time.Hour)},
		{name: "not a provider and past date", providerID: 2, date: now.Add(-4 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newUsers()
			p := NewPolicy(users, panicSlots{}, utcFormatter(), 0)

			_, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: tt.providerID, Date: tt.date}, now)
			if !errors.Is(err, ErrInvalidProvider) {
				t.Fatalf("err = %v, want %v", err, ErrInvalidProvider)
			}
			if len(users.calls) != 1 || users.calls[0] != tt.providerID {
				t.Fatalf("user lookups = %v, want only the provider", users.calls)
			}
		})
	}
}

func TestEvaluateBooking_SameSlotBookedTwice(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	slots := &memorySlots{}
	p := NewPolicy(newUsers(), slots, utcFormatter(), 0)

	first, err := p.EvaluateBooking(context.Background(), BookingRequest{
		RequesterID: 1,
		ProviderID:  7,
		Date:        time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC),
	}, now)
	if err != nil {
		t.Fatalf("first EvaluateBooking error: %v", err)
	}
	slots.active = append(slots.active, first.Appointment)

	_, err = p.EvaluateBooking(context.Background(), BookingRequest{
		RequesterID: 2,
		ProviderID:  7,
		Date:        time.Date(2024, 5, 1, 14, 55, 0, 0, time.UTC),
	}, now)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("second err = %v, want %v", err, ErrSlotUnavailable)
	}

	_, err = p.EvaluateBooking(context.Background(), BookingRequest{
		RequesterID: 2,
		ProviderID:  7,
		Date:        time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC),
	}, now)
	if err != nil {
		t.Fatalf("next hour err = %v, want nil", err)
	}
}

func TestEvaluateBooking_CanceledAppointmentFreesSlot(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	canceledAt := now.Add(-time.Hour)
	slots := &memorySlots{active: []domain.Appointment{{
		ProviderID: 7,
		Slot:       time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC),
		CanceledAt: &canceledAt,
	}}}
	p := NewPolicy(newUsers(), slots, utcFormatter(), 0)

	_, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: 7, Date: time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)}, now)
	if err != nil {
		t.Fatalf("EvaluateBooking error: %v", err)
	}
}

func TestEvaluateBooking_RequesterMissing(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := NewPolicy(newUsers(), &memorySlots{}, utcFormatter(), 0)

	_, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 404, ProviderID: 7, Date: now.Add(2 * time.Hour)}, now)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}
}

func TestEvaluateBooking_LookupFailuresAreWrapped(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	p := NewPolicy(&fakeUsers{err: boom}, panicSlots{}, utcFormatter(), 0)
	_, err := p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: 7, Date: now.Add(2 * time.Hour)}, now)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}

	p = NewPolicy(newUsers(), &memorySlots{err: boom}, utcFormatter(), 0)
	_, err = p.EvaluateBooking(context.Background(), BookingRequest{RequesterID: 1, ProviderID: 7, Date: now.Add(2 * time.Hour)}, now)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func bookedAppointment(date time.Time) domain.Appointment {
	return domain.Appointment{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000101"),
		UserID:     1,
		ProviderID: 7,
		Date:       date,
		Slot:       domain.SlotOf(date),
		Provider:   &domain.User{ID: 7, Name: "Barbearia Sete", Email: "sete@example.com", IsProvider: true},
		User:       &domain.User{ID: 1, Name: "Diego", Email: "diego@example.com"},
	}
}

func TestEvaluateCancellation_BoundaryInsideWindow(t *testing.T) {
	p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 2*time.Hour)
	appt := bookedAppointment(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	task, err := p.EvaluateCancellation(1, &appt, now)
	if !errors.Is(err, ErrTooLateToCancel) {
		t.Fatalf("err = %v, want %v", err, ErrTooLateToCancel)
	}
	if appt.CanceledAt != nil {
		t.Fatalf("canceled_at = %v, want nil", appt.CanceledAt)
	}
	if task.Template != "" {
		t.Fatalf("expected no mail task, got %+v", task)
	}
}

func TestEvaluateCancellation_CutoffEdges(t *testing.T) {
	date := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "well before", now: time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC)},
		{name: "one minute before boundary", now: time.Date(2024, 5, 1, 11, 59, 0, 0, time.UTC)},
		{name: "exactly at boundary", now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{name: "one second after boundary", now: time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC), wantErr: ErrTooLateToCancel},
		{name: "after the appointment", now: time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), wantErr: ErrTooLateToCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 0)
			appt := bookedAppointment(date)
			_, err := p.EvaluateCancellation(1, &appt, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluateCancellation_SuccessProducesMailTask(t *testing.T) {
	p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 0)
	appt := bookedAppointment(time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC))
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	task, err := p.EvaluateCancellation(1, &appt, now)
	if err != nil {
		t.Fatalf("EvaluateCancellation error: %v", err)
	}
	if appt.CanceledAt == nil || !appt.CanceledAt.Equal(now) {
		t.Fatalf("canceled_at = %v, want %v", appt.CanceledAt, now)
	}
	if task.To != `"Barbearia Sete" <sete@example.com>` {
		t.Fatalf("to = %q", task.To)
	}
	if task.Subject != "Agendamento Cancelado" {
		t.Fatalf("subject = %q", task.Subject)
	}
	if task.Template != "cancellation" {
		t.Fatalf("template = %q", task.Template)
	}
	if task.Context["provider"] != "Barbearia Sete" || task.Context["user"] != "Diego" {
		t.Fatalf("context = %v", task.Context)
	}
	if task.Context["date"] != "dia 01 de Mai, às 14:30h" {
		t.Fatalf("context date = %q", task.Context["date"])
	}
}

// The handlers this replaces reported ownership and cutoff failures but kept
// going and canceled anyway. Failures here must stop without side effects, on
// every attempt.
func TestEvaluateCancellation_FailuresAreHardStops(t *testing.T) {
	date := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		requesterID int64
		now         time.Time
		wantErr     error
	}{
		{name: "not owner", requesterID: 2, now: date.Add(-24 * time.Hour), wantErr: ErrNotOwner},
		{name: "too late", requesterID: 1, now: date.Add(-time.Hour), wantErr: ErrTooLateToCancel},
		{name: "not owner and too late", requesterID: 2, now: date.Add(-time.Hour), wantErr: ErrNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 0)
			appt := bookedAppointment(date)

			for attempt := 0; attempt < 3; attempt++ {
				task, err := p.EvaluateCancellation(tt.requesterID, &appt, tt.now)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("attempt %d: err = %v, want %v", attempt, err, tt.wantErr)
				}
				if appt.CanceledAt != nil {
					t.Fatalf("attempt %d: canceled_at mutated to %v", attempt, appt.CanceledAt)
				}
				if task.Template != "" || task.To != "" || task.Context != nil {
					t.Fatalf("attempt %d: expected no mail task, got %+v", attempt, task)
				}
			}
		})
	}
}

func TestEvaluateCancellation_AlreadyCanceled(t *testing.T) {
	p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 0)
	appt := bookedAppointment(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	earlier := time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC)
	appt.CanceledAt = &earlier

	_, err := p.EvaluateCancellation(1, &appt, time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrAlreadyCanceled) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyCanceled)
	}
	if !appt.CanceledAt.Equal(earlier) {
		t.Fatalf("canceled_at = %v, want %v", appt.CanceledAt, earlier)
	}
}

func TestEvaluateCancellation_NilAppointment(t *testing.T) {
	p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), 0)
	if _, err := p.EvaluateCancellation(1, nil, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}
}

func TestNewPolicy_DefaultsCutoff(t *testing.T) {
	p := NewPolicy(newUsers(), panicSlots{}, utcFormatter(), -time.Minute)
	if p.Cutoff() != DefaultCancellationCutoff {
		t.Fatalf("cutoff = %v, want %v", p.Cutoff(), DefaultCancellationCutoff)
	}
}
