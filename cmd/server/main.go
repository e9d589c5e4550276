package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/api"
	"github.com/yourusername/twitch-vod-go/api/handlers"
	"github.com/yourusername/twitch-vod-go/internal/app"
	"github.com/yourusername/twitch-vod-go/internal/domain"
	"github.com/yourusername/twitch-vod-go/internal/hls"
	"github.com/yourusername/twitch-vod-go/internal/infrastructure"
	"github.com/yourusername/twitch-vod-go/internal/intercept"
	"github.com/yourusername/twitch-vod-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode {
		startAsDaemon()
		return
	}

	// Run as server (called by daemon)
	runServer()
}

// startAsDaemon forks the current process and runs the server in background
func startAsDaemon() {
	// Get the executable path
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	// Fork the process
	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open /dev/null: %v\n", err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	// Start the child process
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	// Load configuration
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create directories
	if err := createDirectories(config); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize multi-logger (3 categories: download, job, error)
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer multiLog.Close()

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting twitch-vod server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port))

	// Initialize segment store (also serves as history repository)
	store, err := infrastructure.NewSQLiteSegmentStore(config.Storage.DatabasePath, config.Storage.QuotaBytes)
	if err != nil {
		log.Fatal("Failed to initialize segment store", zap.Error(err))
	}
	defer store.Close()

	// Initialize notification service
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	// Shared HTTP client with the playlist interception rules attached
	httpClient := &http.Client{Timeout: 60 * time.Second}
	twitch := infrastructure.NewTwitchClient(&config.Twitch, httpClient, log)
	synth := hls.NewSynthesizer(twitch, httpClient, log)
	interceptor := intercept.New(nil, synth, config.Twitch.UsherBase, log)
	interceptor.Install(httpClient)
	defer interceptor.Uninstall()

	// Master playlists resolve via the usher origin; the installed
	// interception transport turns denials into synthesized manifests.
	playlists := infrastructure.NewPlaylistSource(httpClient, config.Twitch.UsherBase, log)

	// Segment fetcher with retry, backoff and failure classification
	fetcher := infrastructure.NewResilientClient(httpClient, infrastructure.ResilientClientConfig{
		MaxRetries: config.Download.MaxRetries,
		BaseDelay:  config.Download.RetryBaseDelay,
		Timeout:    config.Download.SegmentTimeout,
		Classify:   domain.ClassifyStatus,
	}, log)

	exporter := infrastructure.NewFileExporter(config.Download.CompletedDir(), config.Download.IncomingDir(), log)

	// Progress stream hub
	progressWS := handlers.NewProgressWebSocketHandler(log)

	// Initialize download manager
	downloadMgr, err := app.NewDownloadManager(
		twitch, playlists, fetcher, store, store,
		exporter, notifier, progressWS,
		config, log, multiLog,
	)
	if err != nil {
		log.Fatal("Failed to initialize download manager", zap.Error(err))
	}
	defer downloadMgr.Close()

	// Setup HTTP router
	router := api.SetupRouter(downloadMgr, twitch, playlists, store, progressWS, log, multiLog)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal")

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Download.CompletedDir(),
		config.Download.IncomingDir(),
		config.Download.LogsDir(),
		config.Download.ConfigDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
