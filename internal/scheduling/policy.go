// Package scheduling decides whether appointments may be booked or canceled.
// It reads users and existing bookings through narrow lookups and returns
// descriptors for the caller to persist; it never writes.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gobarber/backend/internal/datefmt"
	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/store"
)

const DefaultCancellationCutoff = 2 * time.Hour

const cancellationTemplate = "cancellation"

type UserLookup interface {
	ByID(ctx context.Context, id int64) (domain.User, error)
}

type SlotLookup interface {
	ActiveAt(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, bool, error)
}

type Policy struct {
	users  UserLookup
	slots  SlotLookup
	format datefmt.Formatter
	cutoff time.Duration
}

// NewPolicy builds a Policy. A non-positive cutoff means DefaultCancellationCutoff.
func NewPolicy(users UserLookup, slots SlotLookup, format datefmt.Formatter, cutoff time.Duration) *Policy {
	if cutoff <= 0 {
		cutoff = DefaultCancellationCutoff
	}
	return &Policy{users: users, slots: slots, format: format, cutoff: cutoff}
}

func (p *Policy) Cutoff() time.Duration {
	return p.cutoff
}

type BookingRequest struct {
	RequesterID int64
	ProviderID  int64
	Date        time.Time
}

type BookingDecision struct {
	Appointment  domain.Appointment
	Notification domain.Notification
}

// EvaluateBooking checks provider validity, past dates and slot availability, in
// that order, and stops at the first failure. The returned appointment keeps the
// requested date; the hour slot is only used for the checks and the store key.
func (p *Policy) EvaluateBooking(ctx context.Context, req BookingRequest, now time.Time) (BookingDecision, error) {
	provider, err := p.users.ByID(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return BookingDecision{}, ErrInvalidProvider
		}
		return BookingDecision{}, fmt.Errorf("lookup provider: %w", err)
	}
	if !provider.IsProvider {
		return BookingDecision{}, ErrInvalidProvider
	}

	slot := domain.SlotOf(p.format.In(req.Date))
	if slot.Before(now) {
		return BookingDecision{}, ErrPastDate
	}

	_, taken, err := p.slots.ActiveAt(ctx, req.ProviderID, slot.UTC())
	if err != nil {
		return BookingDecision{}, fmt.Errorf("check availability: %w", err)
	}
	if taken {
		return BookingDecision{}, ErrSlotUnavailable
	}

	requester, err := p.users.ByID(ctx, req.RequesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return BookingDecision{}, ErrNotFound
		}
		return BookingDecision{}, fmt.Errorf("lookup requester: %w", err)
	}

	return BookingDecision{
		Appointment: domain.Appointment{
			UserID:     req.RequesterID,
			ProviderID: req.ProviderID,
			Date:       req.Date.UTC(),
			Slot:       slot.UTC(),
		},
		Notification: domain.Notification{
			UserID:  req.ProviderID,
			Content: p.format.NewBooking(requester.Name, slot),
		},
	}, nil
}

// EvaluateCancellation marks appt canceled at now and returns the email to send
// to the provider. appt must have its Provider and User loaded. On any failure
// appt is left untouched and no task is returned.
func (p *Policy) EvaluateCancellation(requesterID int64, appt *domain.Appointment, now time.Time) (domain.MailTask, error) {
	if appt == nil {
		return domain.MailTask{}, ErrNotFound
	}
	if appt.UserID != requesterID {
		return domain.MailTask{}, ErrNotOwner
	}
	if appt.Canceled() {
		return domain.MailTask{}, ErrAlreadyCanceled
	}
	if now.After(appt.Date.Add(-p.cutoff)) {
		return domain.MailTask{}, ErrTooLateToCancel
	}
	if appt.Provider == nil || appt.User == nil {
		return domain.MailTask{}, fmt.Errorf("appointment %s: parties not loaded", appt.ID)
	}

	canceledAt := now.UTC()
	appt.CanceledAt = &canceledAt

	return domain.MailTask{
		To:       appt.Provider.Mailbox(),
		Subject:  p.format.CancellationSubject(),
		Template: cancellationTemplate,
		Context: map[string]string{
			"provider": appt.Provider.Name,
			"user":     appt.User.Name,
			"date":     p.format.Slot(appt.Date),
		},
	}, nil
}
