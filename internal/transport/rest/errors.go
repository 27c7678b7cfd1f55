package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gobarber/backend/internal/scheduling"
	"gobarber/backend/internal/service/appointments"
	"gobarber/backend/internal/service/notifications"
	"gobarber/backend/internal/store"
)

func statusFor(err error) int {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, scheduling.ErrInvalidProvider),
		errors.Is(err, scheduling.ErrNotOwner),
		errors.Is(err, scheduling.ErrTooLateToCancel),
		errors.Is(err, notifications.ErrNotProvider):
		return http.StatusUnauthorized
	case errors.Is(err, scheduling.ErrPastDate),
		errors.Is(err, scheduling.ErrSlotUnavailable),
		errors.Is(err, scheduling.ErrAlreadyCanceled):
		return http.StatusBadRequest
	case errors.Is(err, scheduling.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrIdempotencyConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("route", c.FullPath()), slog.Any("err", err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	var vErr *appointments.ValidationError
	failure := "policy"
	if errors.As(err, &vErr) {
		failure = "validation"
	}
	h.log.Info("request rejected",
		slog.String("route", c.FullPath()),
		slog.String("failure", failure),
		slog.Int("status", status),
		slog.Any("err", err),
	)

	msg := err.Error()
	if msg == "" {
		msg = "Validation fails"
	}
	if errors.Is(err, scheduling.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		msg = "not found"
	}
	c.JSON(status, gin.H{"error": msg})
}
