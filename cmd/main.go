package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"pairlink/auth"
	pairerrors "pairlink/errors"
	"pairlink/repositories"
	"pairlink/runtime"
	"pairlink/runtime/workers"
	"pairlink/services"
	"pairlink/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. This pattern is preferred over calling
// os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories. Joined-session state is only meaningful within one
	// process lifetime, so stale connection records are wiped before
	// anything else runs.
	groupRepository := repositories.NewGroupRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)
	if err = groupRepository.WipeConnections(); err != nil {
		return fmt.Errorf("wiping stale connections: %w", err)
	}
	if err = seedUsers(userRepository, config.SeedUsers); err != nil {
		return err
	}

	// 4. Live-session runtime: presence, router, supervised delivery worker
	presence := runtime.NewPresence()
	router := runtime.NewRouter(log, config.BufferSize)
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewDelivery(log, router, config.SinkTimeout))

	// 5. Services & transport
	messageService := services.NewMessageService(log, userRepository,
		groupRepository, messageRepository, presence, router)
	sessionService := services.NewSessionService(log, presence,
		groupRepository, messageRepository, router)
	tokens := auth.NewTokens(config.TokenSecret, config.TokenDuration)
	handler := ws.NewHandler(log, tokens, sessionService, messageService,
		router, config.ConnectionBufferSize)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 7. HTTP server carrying the WebSocket endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWS)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// seedUsers preloads the local directory from "username:DisplayName" pairs.
func seedUsers(users repositories.UserRepository, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, ",") {
		username, knownAs, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found {
			knownAs = username
		}
		err := users.CreateUser(username, knownAs)
		if err != nil && !stderrors.Is(err, pairerrors.ErrUserAlreadyExists) {
			return fmt.Errorf("seeding user %q: %w", username, err)
		}
	}
	return nil
}
