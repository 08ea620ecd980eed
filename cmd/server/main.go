package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Tyrowin/messenger/internal/chat"
	"github.com/Tyrowin/messenger/internal/metrics"
	"github.com/Tyrowin/messenger/internal/presence"
	"github.com/Tyrowin/messenger/internal/server"
	"github.com/Tyrowin/messenger/internal/store/badger"
	"github.com/Tyrowin/messenger/internal/store/sqlite"
)

// messageStore is what the process needs from a backend.
type messageStore interface {
	chat.MessageStore
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "messenger:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)
	log.Info("Starting messenger server", "store", cfg.StoreDriver, "addr", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := messages.Close(); err != nil {
			log.Error("Closing message store failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := server.NewHub(log, m)
	router := chat.NewRouter(log, presence.NewRegistry(), messages, hub,
		chat.WithMetrics(m),
		chat.WithHistoryLimit(cfg.HistoryLimit))
	hub.SetHandler(server.NewDispatcher(log, router))
	go hub.Run()

	srv := server.NewServer(*cfg, log, hub, router.History(), reg)
	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(log, httpServer)
	}()

	select {
	case err := <-serveErr:
		_ = hub.Shutdown(cfg.ShutdownTimeout)
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownErr := server.ShutdownServer(log, httpServer, cfg.ShutdownTimeout)
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("hub shutdown: %w", err))
	}
	return shutdownErr
}

func openStore(ctx context.Context, cfg *server.Config, log *slog.Logger) (messageStore, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.StorePath)
	case "badger":
		return badger.Open(cfg.StorePath, log)
	case "memory":
		return badger.OpenInMemory(log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
