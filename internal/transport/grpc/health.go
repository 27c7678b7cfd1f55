package grpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks one dependency. Name is also the health service name it is
// reported under.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthChecker runs probes on an interval and publishes the results on a
// health.Server. The overall service ("") is SERVING only when every probe
// passes.
type HealthChecker struct {
	server   *health.Server
	probes   []Probe
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthChecker(server *health.Server, interval time.Duration, log *slog.Logger, probes ...Probe) *HealthChecker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthChecker{
		server:   server,
		probes:   probes,
		interval: interval,
		timeout:  interval / 2,
		log:      log.With(slog.String("component", "health")),
		last:     make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Run checks immediately and then every interval until ctx is done, when
// every service is marked NOT_SERVING.
func (h *HealthChecker) Run(ctx context.Context) {
	h.CheckOnce(ctx)

	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-t.C:
			h.CheckOnce(ctx)
		}
	}
}

func (h *HealthChecker) CheckOnce(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, p := range h.probes {
		status := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.publish(p.Name, status, err)
	}
	h.publish("", overall, nil)
}

func (h *HealthChecker) publish(name string, status healthpb.HealthCheckResponse_ServingStatus, err error) {
	h.mu.Lock()
	prev, seen := h.last[name]
	h.last[name] = status
	h.mu.Unlock()

	h.server.SetServingStatus(name, status)
	if seen && prev == status {
		return
	}
	switch {
	case err != nil:
		h.log.Warn("dependency unhealthy", slog.String("probe", name), slog.Any("err", err))
	case name != "":
		h.log.Info("dependency status", slog.String("probe", name), slog.String("status", status.String()))
	}
}
