package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/rishabh-28-shubham/TechStroke/internal/api"
	"github.com/rishabh-28-shubham/TechStroke/internal/archive"
	"github.com/rishabh-28-shubham/TechStroke/internal/bus"
	"github.com/rishabh-28-shubham/TechStroke/internal/config"
	"github.com/rishabh-28-shubham/TechStroke/internal/db"
	"github.com/rishabh-28-shubham/TechStroke/internal/exec"
	"github.com/rishabh-28-shubham/TechStroke/internal/metrics"
	"github.com/rishabh-28-shubham/TechStroke/internal/room"
	"github.com/rishabh-28-shubham/TechStroke/internal/ws"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.Env)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var eventBus *bus.Bus
	if cfg.RedisAddr != "" {
		eventBus, err = bus.New(ctx, cfg.RedisAddr, cfg.RedisDB, uuid.NewString(), logger)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer eventBus.Close()
		logger.Info("cross-instance bus enabled", "addr", cfg.RedisAddr)
	}

	registry := room.NewRegistry()
	execClient := exec.NewClient(cfg.Exec.URL, cfg.Exec.Timeout)

	hub := ws.NewHub(logger, registry, execClient, eventBus)
	go hub.Run(ctx)

	if cfg.Archive.Enabled {
		archiver := archive.New(logger, database, registry, cfg.Archive.Interval)
		archiver.Start()
		defer archiver.Stop()
	}

	apiHandler := api.New(hub, database, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, cfg.WebSocket.MessagesPerSecond, cfg.WebSocket.MessageBurst, w, r)
	})
	mux.HandleFunc("/health", apiHandler.HealthHandler)
	mux.HandleFunc("/api/stats", apiHandler.StatsHandler)
	mux.HandleFunc("/api/snippets", apiHandler.SnippetsRouter)
	mux.HandleFunc("/api/snippets/", apiHandler.SnippetsRouter)
	mux.HandleFunc("/api/env", apiHandler.EnvRouter)
	mux.HandleFunc("/api/env/", apiHandler.EnvRouter)
	mux.HandleFunc("/api/documentation", apiHandler.DocsRouter)
	mux.HandleFunc("/api/documentation/", apiHandler.DocsRouter)
	mux.Handle("/metrics", metrics.Handler())

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllow,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(mux)

	// No server-wide write timeout: websocket connections are long-lived
	// and manage their own deadlines after the upgrade.
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		cancel()
		server.Shutdown(context.Background())
	}()

	logger.Info("server starting", "addr", cfg.Server.Addr, "db", cfg.DBPath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
