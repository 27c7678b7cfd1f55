package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"gobarber/backend/internal/config"
	"gobarber/backend/internal/datefmt"
	"gobarber/backend/internal/mail"
	"gobarber/backend/internal/obs"
	"gobarber/backend/internal/service/appointments"
	"gobarber/backend/internal/service/notifications"
	"gobarber/backend/internal/service/providers"
	"gobarber/backend/internal/store/mongo"
	"gobarber/backend/internal/store/postgres"
	grpcTransport "gobarber/backend/internal/transport/grpc"
	"gobarber/backend/internal/transport/rest"
)

const serviceName = "gobarber-server"

var version = "dev"

func main() {
	log := obs.NewLogger(os.Stdout, serviceName, "info")
	slog.SetDefault(log)

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	log = obs.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, version, cfg.OTelEndpoint)
	if err != nil {
		log.Error("tracer init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	locale, err := datefmt.LocaleFor(cfg.Locale)
	if err != nil {
		log.Error("locale invalid", slog.Any("err", err))
		os.Exit(1)
	}
	zone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("timezone invalid", slog.Any("err", err), slog.String("timezone", cfg.Timezone))
		os.Exit(1)
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		PingTimeout:     cfg.DBPingTimeout,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	mongoClient, err := mongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Error("mongo connection failed", slog.Any("err", err), slog.String("mongo_db", cfg.MongoDatabase))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := mongo.Disconnect(ctx, mongoClient); err != nil {
			log.Warn("mongo disconnect failed", slog.Any("err", err))
		}
	}()

	inbox := mongo.NewNotificationRepo(mongoClient.Database(cfg.MongoDatabase))
	if err := inbox.EnsureIndexes(ctx); err != nil {
		log.Error("mongo index setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	publisher, err := mail.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Error("rabbitmq connection failed", slog.Any("err", err), slog.String("exchange", cfg.RabbitExchange))
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("rabbitmq close failed", slog.Any("err", err))
		}
	}()

	users := postgres.NewUserRepo(db)
	bookings := appointments.NewService(appointments.Deps{
		Appointments:       postgres.NewAppointmentRepo(db),
		Users:              users,
		Notifications:      inbox,
		Mailer:             publisher,
		Formatter:          datefmt.New(locale, zone),
		CancellationCutoff: cfg.CancellationCutoff,
		FilesBaseURL:       cfg.AppURL,
		Log:                log,
	})

	limiter := rest.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	router := rest.NewRouter(rest.Config{
		Appointments:       bookings,
		Providers:          providers.NewService(users, cfg.AppURL),
		Notifications:      notifications.NewService(users, inbox),
		JWTSecret:          cfg.JWTSecret,
		CORSOrigins:        cfg.CORSOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		UploadsDir:         cfg.UploadsDir,
		RequestTimeout:     cfg.HTTPRequestTimeout,
		CancellationCutoff: cfg.CancellationCutoff,
		Limiter:            limiter,
		Log:                log,
	})
	httpServer := rest.Server(cfg.HTTPAddr, router)

	healthServer := health.NewServer()
	grpcServer := grpcTransport.NewServer(healthServer, cfg.GRPCRequestTimeout, log)
	checker := grpcTransport.NewHealthChecker(healthServer, cfg.HealthInterval, log,
		grpcTransport.Probe{Name: "postgres", Check: postgres.Probe(db)},
		grpcTransport.Probe{Name: "mongo", Check: mongo.Probe(mongoClient)},
		grpcTransport.Probe{Name: "rabbitmq", Check: publisher.Probe},
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go checker.Run(ctx)

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr))

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			exitCode = 1
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}
	cancel()
	grpcTransport.Shutdown(log, grpcServer, cfg.ShutdownTimeout)

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
