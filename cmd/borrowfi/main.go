package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/borrowfi/borrowfi-go/internal/config"
	"github.com/borrowfi/borrowfi-go/internal/ledger"
	"github.com/borrowfi/borrowfi-go/internal/ledgersync"
	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/notify"
	"github.com/borrowfi/borrowfi-go/internal/orchestrator"
	"github.com/borrowfi/borrowfi-go/internal/state"
	"github.com/borrowfi/borrowfi-go/internal/wallet"
	"github.com/borrowfi/borrowfi-go/internal/web"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log := logger.GetForComponent("main")

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.DBHost != "" {
		err := state.InitDB(state.DBConfig{
			Host:     config.DBHost,
			Port:     config.DBPort,
			User:     config.DBUser,
			Password: config.DBPassword,
			DBName:   config.DBName,
			SSLMode:  config.DBSSLMode,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()

		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database schema")
		}
	} else {
		log.Warn().Msg("No database configured; action journal and position history are disabled")
	}

	signer, err := wallet.NewSigner(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize signer")
	}
	defer signer.Close()

	ledgerClient := ledger.NewClient(signer)
	store := ledgersync.NewStore()
	syncer := ledgersync.NewSyncer(ledgerClient, store, signer.Address())
	notifier := notify.NewCenter()
	orch := orchestrator.New(ledgerClient, store, syncer, notifier)

	if err := syncer.RefetchAll(ctx, "startup"); err != nil {
		log.Warn().Err(err).Msg("Initial state sync failed; serving zero state until the ledger is reachable")
	}

	events := make(chan ledger.TokenEvent, 64)
	watcher := ledger.NewWatcher(signer.Client())
	go func() {
		if err := watcher.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Event watcher stopped")
		}
	}()
	go func() {
		if err := syncer.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Sync loop stopped")
		}
	}()

	server := web.NewWebServer(os.Getenv("WEB_PORT"), store, orch, notifier)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Web server failed")
		}
	}()

	log.Info().Str("account", signer.Address().Hex()).Msg("BorrowFI client is running")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
}
