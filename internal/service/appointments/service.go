package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gobarber/backend/internal/datefmt"
	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/scheduling"
	"gobarber/backend/internal/store"
)

const PageSize = 20

// MaxPage keeps the row offset of the last page within an int32.
const MaxPage = math.MaxInt32 / PageSize

var tracer = otel.Tracer("gobarber/backend/internal/service/appointments")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// MailDispatcher hands a mail task to the delivery pipeline. Implementations
// should return once the task is queued, not once it is delivered.
type MailDispatcher interface {
	Dispatch(ctx context.Context, task domain.MailTask) error
}

type Deps struct {
	Appointments  store.AppointmentRepository
	Users         store.UserRepository
	Notifications store.NotificationRepository
	Mailer        MailDispatcher
	Formatter     datefmt.Formatter
	Clock         Clock
	// CancellationCutoff defaults to scheduling.DefaultCancellationCutoff.
	CancellationCutoff time.Duration
	// FilesBaseURL is the public base URL avatars are served from.
	FilesBaseURL string
	Log          *slog.Logger
}

type Service struct {
	repo          store.AppointmentRepository
	notifications store.NotificationRepository
	mailer        MailDispatcher
	policy        *scheduling.Policy
	clock         Clock
	filesBaseURL  string
	log           *slog.Logger
}

func NewService(d Deps) *Service {
	clock := d.Clock
	if clock == nil {
		clock = systemClock{}
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:          d.Appointments,
		notifications: d.Notifications,
		mailer:        d.Mailer,
		policy:        scheduling.NewPolicy(d.Users, d.Appointments, d.Formatter, d.CancellationCutoff),
		clock:         clock,
		filesBaseURL:  d.FilesBaseURL,
		log:           log.With(slog.String("component", "service.appointments")),
	}
}

type CreateInput struct {
	RequesterID    int64
	ProviderID     int64
	Date           time.Time
	IdempotencyKey string
}

// Booking is the outcome of a successful Create. NotifyErr is set when the
// appointment was stored but the provider notification could not be.
type Booking struct {
	Appointment  domain.Appointment
	Notification domain.Notification
	Replayed     bool
	NotifyErr    error
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	ctx, span := tracer.Start(ctx, "appointments.Create", trace.WithAttributes(
		attribute.Int64("requester_id", in.RequesterID),
		attribute.Int64("provider_id", in.ProviderID),
	))
	defer span.End()

	b, err := s.create(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return b, err
}

func (s *Service) create(ctx context.Context, in CreateInput) (Booking, error) {
	if in.RequesterID <= 0 {
		return Booking{}, validationError("user_id is required")
	}
	if in.ProviderID <= 0 {
		return Booking{}, validationError("provider_id is required")
	}
	if in.Date.IsZero() {
		return Booking{}, validationError("date is required")
	}

	var id uuid.UUID
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return Booking{}, validationError("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("gobarber:create_appointment:"+strconv.FormatInt(in.RequesterID, 10)+":"+key))

		existing, err := s.repo.Get(ctx, id)
		switch {
		case err == nil:
			if existing.UserID != in.RequesterID || existing.ProviderID != in.ProviderID || !existing.Date.Equal(in.Date.Truncate(time.Microsecond)) {
				return Booking{}, store.ErrIdempotencyConflict
			}
			return Booking{Appointment: existing, Replayed: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return Booking{}, fmt.Errorf("load idempotent appointment: %w", err)
		}
	}

	decision, err := s.policy.EvaluateBooking(ctx, scheduling.BookingRequest{
		RequesterID: in.RequesterID,
		ProviderID:  in.ProviderID,
		Date:        in.Date,
	}, s.clock.Now())
	if err != nil {
		return Booking{}, err
	}

	appt := decision.Appointment
	appt.ID = id
	created, err := s.repo.Create(ctx, appt)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Booking{}, scheduling.ErrSlotUnavailable
		}
		return Booking{}, err
	}

	out := Booking{Appointment: created}
	n, err := s.notifications.Create(ctx, decision.Notification)
	if err != nil {
		out.NotifyErr = fmt.Errorf("create notification: %w", err)
		s.log.Warn(
			"provider notification failed",
			slog.String("failure", "dispatch"),
			slog.Any("err", err),
			slog.String("appointment_id", created.ID.String()),
			slog.Int64("provider_id", created.ProviderID),
		)
		return out, nil
	}
	out.Notification = n
	return out, nil
}

// List returns the requester's active appointments, PageSize per page, earliest
// first. Pages are numbered from 1.
func (s *Service) List(ctx context.Context, userID int64, page int) ([]domain.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.List", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("page", page),
	))
	defer span.End()

	if userID <= 0 {
		return nil, validationError("user_id is required")
	}
	if page < 1 {
		return nil, validationError("page must be at least 1")
	}
	if page > MaxPage {
		return nil, validationError("page is too large")
	}

	rows, err := s.repo.ListActiveByUser(ctx, userID, PageSize, (page-1)*PageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for i := range rows {
		if rows[i].Provider != nil {
			rows[i].Provider.Avatar.ResolveURL(s.filesBaseURL)
		}
	}
	return rows, nil
}

// Cancellation is the outcome of a successful Cancel. MailErr is set when the
// appointment was canceled but the provider email could not be queued.
type Cancellation struct {
	Appointment domain.Appointment
	MailErr     error
}

func (s *Service) Cancel(ctx context.Context, requesterID int64, appointmentID uuid.UUID) (Cancellation, error) {
	ctx, span := tracer.Start(ctx, "appointments.Cancel", trace.WithAttributes(
		attribute.Int64("requester_id", requesterID),
		attribute.String("appointment_id", appointmentID.String()),
	))
	defer span.End()

	c, err := s.cancel(ctx, requesterID, appointmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return c, err
}

func (s *Service) cancel(ctx context.Context, requesterID int64, appointmentID uuid.UUID) (Cancellation, error) {
	if requesterID <= 0 {
		return Cancellation{}, validationError("user_id is required")
	}
	if appointmentID == uuid.Nil {
		return Cancellation{}, validationError("appointment_id is required")
	}

	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Cancellation{}, scheduling.ErrNotFound
		}
		return Cancellation{}, err
	}

	task, err := s.policy.EvaluateCancellation(requesterID, &appt, s.clock.Now())
	if err != nil {
		return Cancellation{}, err
	}

	if err := s.repo.Save(ctx, appt); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return Cancellation{}, scheduling.ErrAlreadyCanceled
		case errors.Is(err, store.ErrNotFound):
			return Cancellation{}, scheduling.ErrNotFound
		}
		return Cancellation{}, err
	}

	out := Cancellation{Appointment: appt}
	if err := s.mailer.Dispatch(ctx, task); err != nil {
		out.MailErr = fmt.Errorf("dispatch cancellation mail: %w", err)
		s.log.Warn(
			"cancellation mail dispatch failed",
			slog.String("failure", "dispatch"),
			slog.Any("err", err),
			slog.String("appointment_id", appt.ID.String()),
			slog.Int64("provider_id", appt.ProviderID),
		)
	}
	return out, nil
}
