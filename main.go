package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"fleetdash/api"
	"fleetdash/clock"
	"fleetdash/config"
	"fleetdash/render"
	"fleetdash/service"
)

// setupLogging creates a log file in dir with timestamp and returns a
// logger writing to both stdout and the file. The file handle is nil
// when dir is empty (caller should Close() it otherwise).
func setupLogging(dir, level string) (*slog.Logger, *os.File, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if dir == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil, nil
	}

	// Create log directory if not exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log file with timestamp: log/2025-12-08_21-52-35.log
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(dir, timestamp+".log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Write to both console and file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(multiWriter, opts))
	logger.Info("📝 logging to file", "path", logPath)
	return logger, logFile, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse("fleetdash", os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := setupLogging(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting fleet dashboard...", "upstream", cfg.Upstream.URL, "listen", cfg.Server.Addr)

	var journal *service.Journal
	if cfg.Journal.Path != "" {
		db, err := config.InitDatabase(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		journal = service.NewJournal(db, cfg.Journal.QueueSize, clock.Real(), logger)
		defer journal.Close()
		logger.Info("presence journal enabled", "path", cfg.Journal.Path)
	}

	hub := api.NewWebSocketHub(logger)
	go hub.Run(ctx)

	layer := render.NewLayer(hub)
	list := render.NewList(hub)
	console := render.NewConsole(os.Stderr)

	upstream := service.NewUpstream(service.UpstreamConfig{
		URL:              cfg.Upstream.URL,
		HandshakeTimeout: cfg.Upstream.HandshakeTimeout,
		WriteWait:        cfg.Upstream.WriteWait,
		ReadLimit:        cfg.Upstream.ReadLimit,
		SendBuffer:       cfg.Upstream.SendBuffer,
	}, logger)

	opts := service.Options{
		Map:            layer,
		List:           list,
		Notifier:       service.Notifiers{console, hub},
		Sender:         upstream,
		Clock:          clock.Real(),
		Logger:         logger,
		Center:         cfg.Map.Center,
		Zoom:           cfg.Map.Zoom,
		FollowInterval: cfg.Follow.Interval,
	}
	if journal != nil {
		opts.Recorder = journal
	}
	dashboard := service.NewDashboard(opts)

	// The loop outlives the signal so the final list can still be read.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		dashboard.Run(loopCtx)
	}()

	go func() {
		// No reconnect: a lost session needs a restart.
		if err := upstream.Run(ctx, dashboard); err != nil {
			logger.Error("upstream session over, restart the dashboard to reconnect", "error", err)
		}
	}()

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, &api.Server{
		Dashboard: dashboard,
		Layer:     layer,
		List:      list,
		Hub:       hub,
		Journal:   journal,
	})

	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "http", "http://"+cfg.Server.Addr, "ws", "ws://"+cfg.Server.Addr+"/ws")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping...")
	}

	// Print the last known fleet before the loop goes away.
	printCtx, cancelPrint := context.WithTimeout(context.Background(), time.Second)
	dashboard.Do(printCtx, func() { console.PrintList(list.Rows()) })
	cancelPrint()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	stopLoop()
	<-loopDone
	return nil
}
