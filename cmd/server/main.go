// server runs the gate control plane: code issuance, verification,
// command dispatch, the expiry sweep, and the admin HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gate-control-plane/internal/audit"
	auditrepo "gate-control-plane/internal/audit/repository"
	"gate-control-plane/internal/code"
	"gate-control-plane/internal/config"
	"gate-control-plane/internal/db"
	"gate-control-plane/internal/gate"
	"gate-control-plane/internal/httpapi"
	"gate-control-plane/internal/reaper"
	"gate-control-plane/internal/relay"
	"gate-control-plane/internal/security"
	"gate-control-plane/internal/transport"
	transportkafka "gate-control-plane/internal/transport/kafka"
	transportmqtt "gate-control-plane/internal/transport/mqtt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New(os.Stdout, "gate-control-plane ", log.LstdFlags|log.LUTC)

	// Audit trail: in memory unless a database is configured.
	var auditStore audit.Store = audit.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		auditStore = auditrepo.NewPostgresStore(conn)
		logger.Printf("audit trail persisted to Postgres")
	}
	auditLog := audit.NewLog(auditStore)

	store := code.NewStore(auditLog, cfg.CodeMaxAttempts)

	registry, err := buildRegistry(cfg)
	if err != nil {
		log.Fatalf("targets: %v", err)
	}

	publisher, err := buildPublisher(cfg, logger)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer publisher.Close()

	commandGate := gate.New(store, auditLog, registry, publisher)

	if cfg.AdminPasswordHash == "" {
		log.Fatalf("config: ADMIN_PASSWORD_HASH must be set")
	}
	admin := security.Admin{Name: cfg.AdminName, PasswordHash: cfg.AdminPasswordHash}

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweep := reaper.New(store, auditLog, cfg.SweepIntervalDuration(), logger)
	sweep.Start(ctx)
	defer sweep.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              cfg.HTTPAddr,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Store:             store,
		Gate:              commandGate,
		Audit:             auditLog,
		Admin:             admin,
		Tokens:            tokens,
	})

	go func() {
		logger.Printf("listening on %s (transport=%s)", cfg.HTTPAddr, cfg.Transport)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildRegistry(cfg *config.Config) (*relay.Registry, error) {
	targets := relay.DefaultTargets()
	extra, err := relay.ParseTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}
	return relay.NewRegistry(append(targets, extra...)...), nil
}

func buildPublisher(cfg *config.Config, logger *log.Logger) (transport.Publisher, error) {
	switch cfg.Transport {
	case "mqtt":
		return transportmqtt.Connect(transportmqtt.Config{
			Host:               cfg.MQTTHost,
			Port:               cfg.MQTTPort,
			Username:           cfg.MQTTUser,
			Password:           cfg.MQTTPass,
			UseTLS:             cfg.MQTTTLS,
			InsecureSkipVerify: cfg.MQTTInsecureSkipVerify,
		})
	case "kafka":
		return transportkafka.NewPublisher(cfg.KafkaBrokersList())
	default:
		return transport.NewLogPublisher(logger), nil
	}
}
