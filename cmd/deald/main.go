package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal-lab/auth"
	"deal-lab/channel"
	"deal-lab/clock"
	"deal-lab/contract"
	"deal-lab/infrastructure/doma"
	deallabhttp "deal-lab/infrastructure/http"
	"deal-lab/infrastructure/transport"
	"deal-lab/internal"
	"deal-lab/lifecycle"
	"deal-lab/runtime"
	"deal-lab/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "deald terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanups always execute.
func run() (int, error) {
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.GetLogger(config.LogLevel)

	options := badger.DefaultOptions(config.BadgerFilepath).WithLogger(nil)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	systemClock := clock.System()
	domaClient := doma.NewClient(config.DomaAPIBase, systemClock, logger, config.DemoFallback)
	localTransport := transport.NewLocal(db, logger)
	offers := lifecycle.NewManager(systemClock, logger)
	book := channel.NewBook(systemClock, logger)

	// The transport handle is owned here and handed to the orchestrator
	// explicitly; teardown on shutdown goes through Stop, not through
	// module-scoped state.
	orchestrator := runtime.NewOrchestrator(logger, systemClock, offers, book,
		localTransport, domaClient, domaClient, envIdentity{})
	service := services.NewNegotiationService(orchestrator, offers, domaClient)

	issuer := auth.NewTokenIssuer(config.SessionTokenSecret, config.SessionTokenDuration)
	api := deallabhttp.NewServer(service, issuer, logger, config.PublicBaseURL)

	httpServer := &http.Server{
		Addr:    config.Addr(),
		Handler: api.Engine(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("deal pages API listening", "addr", config.Addr())
		serveErr <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, fmt.Errorf("http server failed: %w", err)
		}
	}

	// Sessions release their stream subscriptions before the listener
	// goes away, so no callback lands on a closed channel.
	orchestrator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("http shutdown failed: %w", err)
	}

	logger.Info("deald stopped cleanly")
	return exitOK, nil
}

// envIdentity reads the operator's wallet address from the environment.
// The engine treats it as an opaque string.
type envIdentity struct{}

var _ contract.IdentityProvider = envIdentity{}

func (envIdentity) Address() string {
	return os.Getenv("WALLET_ADDRESS")
}
