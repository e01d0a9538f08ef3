package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tulia-commerce/convoapi/internal/config"
	"github.com/tulia-commerce/convoapi/internal/db"
	"github.com/tulia-commerce/convoapi/internal/dispatcher"
	client "github.com/tulia-commerce/convoapi/internal/httpclient"
	"github.com/tulia-commerce/convoapi/internal/scheduler"
	"github.com/tulia-commerce/convoapi/internal/store"
	"github.com/tulia-commerce/convoapi/internal/telephony"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// main runs the background worker process: the pending-scheduled-message
// poller, the daily re-engagement/dormancy sweep, and the transactional
// outbox drainer. It shares nothing with cmd/server beyond the database
// and dispatcher stack — this process never serves HTTP traffic.
func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "convoapi-worker").Logger()

	if env("CONVOAPI_ENV", "") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	tenants := store.NewTenantStore(pool)
	conversations := store.NewConversationStore(pool)
	scheduling := store.NewSchedulingStore(pool)
	outbox := store.NewOutboxStore(pool)

	httpClient := client.New(env("CONVOAPI_EXTERNAL_BASE_URL", ""), "external", "", cfg.ExternalTimeout)
	sender := telephony.NewSandboxSender(httpClient, log.Logger)
	disp := dispatcher.New(conversations, scheduling, sender, log.Logger)

	svc := scheduler.New(tenants, conversations, scheduling, outbox, disp, log.Logger)
	svc.PollInterval = cfg.Scheduler.PendingMessagePollInterval

	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler service")
	}

	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("starting worker metrics server")
		mux := http.NewServeMux()
		mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		}))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("worker metrics server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down worker gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler service shutdown error")
	}

	log.Info().Msg("worker stopped")
}
