// Package rest serves the booking API over HTTP with gin.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gobarber/backend/internal/domain"
	"gobarber/backend/internal/service/appointments"
)

type AppointmentService interface {
	Create(ctx context.Context, in appointments.CreateInput) (appointments.Booking, error)
	List(ctx context.Context, userID int64, page int) ([]domain.Appointment, error)
	Cancel(ctx context.Context, requesterID int64, appointmentID uuid.UUID) (appointments.Cancellation, error)
}

type ProviderService interface {
	List(ctx context.Context) ([]domain.User, error)
}

type NotificationService interface {
	List(ctx context.Context, requesterID int64) ([]domain.Notification, error)
}

type Config struct {
	Appointments  AppointmentService
	Providers     ProviderService
	Notifications NotificationService

	JWTSecret      string
	CORSOrigins    []string
	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string
	UploadsDir     string
	RequestTimeout time.Duration
	// CancellationCutoff drives the "cancelable" flag on listed appointments.
	CancellationCutoff time.Duration
	Limiter            *RateLimiter
	Now                func() time.Time
	Log                *slog.Logger
}

func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	h := &handler{
		appointments:  cfg.Appointments,
		providers:     cfg.Providers,
		notifications: cfg.Notifications,
		cutoff:        cfg.CancellationCutoff,
		now:           cfg.Now,
		log:           log.With(slog.String("component", "transport.rest")),
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		h.log.Warn("trusted proxies rejected, trusting none", slog.Any("err", err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), requestLogger(h.log), requestTimeout(cfg.RequestTimeout))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	if cfg.UploadsDir != "" {
		r.Static("/files", cfg.UploadsDir)
	}

	api := r.Group("/")
	api.Use(Auth(cfg.JWTSecret))
	{
		api.GET("/providers", h.listProviders)
		api.GET("/appointments", h.listAppointments)
		api.POST("/appointments", RateLimit(cfg.Limiter), h.createAppointment)
		api.DELETE("/appointments/:id", h.cancelAppointment)
		api.GET("/notifications", h.listNotifications)
	}

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); ok {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Server wraps r in an http.Server with conservative header timeouts.
func Server(addr string, r http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
