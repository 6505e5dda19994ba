package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	authhandler "chariblock/internal/auth/handler"
	authservice "chariblock/internal/auth/service"
	"chariblock/internal/auth/store/revocation"
	charityhandler "chariblock/internal/charity/handler"
	charitymetrics "chariblock/internal/charity/metrics"
	charityservice "chariblock/internal/charity/service"
	"chariblock/internal/documents"
	donationhandler "chariblock/internal/donation/handler"
	donationmetrics "chariblock/internal/donation/metrics"
	donationservice "chariblock/internal/donation/service"
	jwttoken "chariblock/internal/jwt_token"
	"chariblock/internal/platform/config"
	"chariblock/internal/platform/httpserver"
	"chariblock/internal/platform/kafka"
	"chariblock/internal/platform/metrics"
	"chariblock/internal/platform/postgres"
	platformredis "chariblock/internal/platform/redis"
	profilehandler "chariblock/internal/profile/handler"
	profileservice "chariblock/internal/profile/service"
	"chariblock/internal/storage"
	"chariblock/internal/storage/memory"
	pgstorage "chariblock/internal/storage/postgres"
	httptransport "chariblock/internal/transport/http"
	audit "chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/audit/publishers/compliance"
	"chariblock/pkg/platform/audit/publishers/security"
	auditmemory "chariblock/pkg/platform/audit/store/memory"
	auditpg "chariblock/pkg/platform/audit/store/postgres"
	"chariblock/pkg/platform/audit/worker"
)

type revocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// serveRun wires the stores, services and router, then serves until
// SIGINT/SIGTERM.
func serveRun(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDevSigningKey() {
		log.WarnContext(ctx, "using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	g, gctx := errgroup.WithContext(ctx)
	health := map[string]httptransport.HealthCheck{}

	var (
		store      storage.Store
		auditStore audit.Store
	)
	if cfg.Database.URL == "" {
		log.WarnContext(ctx, "no database configured, using the in-memory store")
		store = memory.New(memory.WithTxTimeout(cfg.StoreTxTimeout))
		auditStore = auditmemory.NewInMemoryStore()
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db, log); err != nil {
				return err
			}
		}
		pgStore := pgstorage.New(db, pgstorage.WithTxTimeout(cfg.StoreTxTimeout))
		outbox := auditpg.New(db)
		store, auditStore = pgStore, outbox
		health["postgres"] = db.PingContext

		producer, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		if producer != nil {
			defer producer.Close()
			health["kafka"] = producer.Health
			relay := worker.NewRelay(outbox, pgStore, producer, log)
			g.Go(func() error {
				if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("audit relay: %w", err)
				}
				return nil
			})
			log.InfoContext(ctx, "relaying audit outbox to kafka", "topic", cfg.Kafka.Topic)
		}
	}

	var trl revocationList
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		trl = revocation.NewRedisTRL(redisClient.Client)
		health["redis"] = redisClient.Health
	} else {
		trl = revocation.NewInMemoryTRL()
	}

	uploader, err := documents.New(ctx, cfg.Documents, log)
	if err != nil {
		return err
	}
	var mediaDir string
	if _, local := uploader.(*documents.Local); local {
		mediaDir = cfg.Documents.LocalDir
	}

	compliancePub := compliance.New(auditStore, compliance.WithLogger(log))
	securityPub := security.New(auditStore, security.WithLogger(log))
	defer func() {
		_ = securityPub.Close()
		if dropped := securityPub.Dropped(); dropped > 0 {
			log.Warn("security audit events dropped", "count", dropped)
		}
	}()

	platformMetrics := metrics.New()
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)

	profiles := profileservice.New(store,
		profileservice.WithLogger(log),
		profileservice.WithAuditPublisher(compliancePub),
		profileservice.WithMetrics(platformMetrics),
	)
	charities := charityservice.New(store, uploader,
		charityservice.WithLogger(log),
		charityservice.WithAuditPublisher(compliancePub),
		charityservice.WithMetrics(charitymetrics.New()),
	)
	donations := donationservice.New(store,
		donationservice.WithLogger(log),
		donationservice.WithAuditPublisher(compliancePub),
		donationservice.WithMetrics(donationmetrics.New()),
	)
	auth := authservice.New(store, jwtService, trl,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(securityPub),
		authservice.WithTokenTTL(cfg.Auth.TokenTTL),
	)

	router := httptransport.NewRouter(httptransport.Options{
		RequestTimeout:  cfg.RequestTimeout,
		RequireSessions: cfg.Auth.RequireSessions,
		AdminToken:      cfg.Auth.AdminToken,
		MediaDir:        mediaDir,
	}, httptransport.Deps{
		Profiles:    profilehandler.New(profiles, log),
		Charities:   charityhandler.New(charities, log, cfg.Documents.MaxUploadBytes),
		Donations:   donationhandler.New(donations, log),
		Auth:        authhandler.New(auth, log),
		Validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		Revocations: trl,
		Metrics:     platformMetrics,
		Gatherer:    prometheus.DefaultGatherer,
		Health:      health,
		Logger:      log,
	})
	if cfg.Auth.AdminToken == "" {
		log.WarnContext(ctx, "ADMIN_TOKEN is empty; charity review is open")
	}

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)
	g.Go(func() error {
		log.InfoContext(ctx, "starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	_ = store.Close()
	return err
}
