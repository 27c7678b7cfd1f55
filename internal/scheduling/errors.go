package scheduling

import "errors"

var (
	ErrInvalidProvider = errors.New("you can only create appointments with providers")
	ErrPastDate        = errors.New("past dates are not permitted")
	ErrSlotUnavailable = errors.New("appointment date is not available")
	ErrNotOwner        = errors.New("you don't have permission to cancel this appointment")
	ErrTooLateToCancel = errors.New("the cancellation window for this appointment has closed")
	ErrAlreadyCanceled = errors.New("appointment is already canceled")
	ErrNotFound        = errors.New("not found")
)
