package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gobarber/backend/internal/scheduling"
	"gobarber/backend/internal/service/appointments"
)

type handler struct {
	appointments  AppointmentService
	providers     ProviderService
	notifications NotificationService
	cutoff        time.Duration
	now           func() time.Time
	log           *slog.Logger
}

func (h *handler) listProviders(c *gin.Context) {
	rows, err := h.providers.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]providerResponse, 0, len(rows))
	for _, u := range rows {
		out = append(out, toProvider(u))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) listAppointments(c *gin.Context) {
	page := 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a number"})
			return
		}
		page = n
	}

	rows, err := h.appointments.List(c.Request.Context(), requesterID(c), page)
	if err != nil {
		h.fail(c, err)
		return
	}

	cutoff := h.cutoff
	if cutoff <= 0 {
		cutoff = scheduling.DefaultCancellationCutoff
	}
	now := h.now()
	out := make([]listedAppointment, 0, len(rows))
	for _, a := range rows {
		out = append(out, toListed(a, now, cutoff))
	}
	c.JSON(http.StatusOK, out)
}

type createAppointmentRequest struct {
	ProviderID int64  `json:"provider_id"`
	Date       string `json:"date"`
}

func (h *handler) createAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation fails"})
		return
	}

	var date time.Time
	if s := strings.TrimSpace(req.Date); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be RFC3339"})
			return
		}
		date = parsed
	}

	b, err := h.appointments.Create(c.Request.Context(), appointments.CreateInput{
		RequesterID:    requesterID(c),
		ProviderID:     req.ProviderID,
		Date:           date,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if b.Replayed {
		status = http.StatusOK
	}
	h.log.Info(
		"appointment created",
		slog.String("appointment_id", b.Appointment.ID.String()),
		slog.Int64("user_id", b.Appointment.UserID),
		slog.Int64("provider_id", b.Appointment.ProviderID),
		slog.Bool("replayed", b.Replayed),
	)
	c.JSON(status, toAppointment(b.Appointment))
}

func (h *handler) cancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, scheduling.ErrNotFound)
		return
	}

	res, err := h.appointments.Cancel(c.Request.Context(), requesterID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info(
		"appointment canceled",
		slog.String("appointment_id", res.Appointment.ID.String()),
		slog.Int64("user_id", requesterID(c)),
		slog.Bool("mail_queued", res.MailErr == nil),
	)
	c.JSON(http.StatusOK, toAppointment(res.Appointment))
}

func (h *handler) listNotifications(c *gin.Context) {
	rows, err := h.notifications.List(c.Request.Context(), requesterID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]notificationResponse, 0, len(rows))
	for _, n := range rows {
		out = append(out, toNotification(n))
	}
	c.JSON(http.StatusOK, out)
}
