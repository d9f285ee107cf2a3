// main package for the sentence-clips-service
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/book-expert/logger"

	"github.com/book-expert/sentence-clips-service/internal/config"
	"github.com/book-expert/sentence-clips-service/internal/pipeline"
	"github.com/book-expert/sentence-clips-service/internal/runstore"
	"github.com/book-expert/sentence-clips-service/internal/tts"
	"github.com/book-expert/sentence-clips-service/internal/tts/edge"
	"github.com/book-expert/sentence-clips-service/internal/tts/text"
	"github.com/book-expert/sentence-clips-service/internal/tts/ttsutils"
	"github.com/book-expert/sentence-clips-service/internal/web"
)

const (
	bootstrapLogName = "sentence-clips-bootstrap.log"
	serviceLogName   = "sentence-clips-service.log"
	natsDirName      = "nats"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// loadConfig loads the service configuration. The service is useful with no
// configuration file at all, so a load failure falls back to defaults.
func loadConfig(bootstrapLog *logger.Logger) *config.Config {
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Warn("Failed to load configuration, using defaults: %v", err)

		return config.Default()
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	return cfg
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogName)
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration
	cfg := loadConfig(bootstrapLog)

	// 3. Prepare the working and log directories
	err = ttsutils.EnsureDir(cfg.Paths.WorkDir)
	if err != nil {
		bootstrapLog.Error("Failed to create work directory: %v", err)

		return fmt.Errorf("failed to create work directory: %w", err)
	}

	err = ttsutils.EnsureDir(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create logs directory: %v", err)

		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// 4. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve wires the pipeline together and blocks until shutdown.
func serve(cfg *config.Config, log *logger.Logger) error {
	// The embedded object store holds each run's clips and archive until
	// the run's retention window lapses.
	storeDir := filepath.Join(cfg.Paths.WorkDir, natsDirName)

	embedded, err := runstore.StartEmbedded(storeDir, log)
	if err != nil {
		return fmt.Errorf("failed to start embedded object store: %w", err)
	}

	defer embedded.Shutdown()

	opener := runstore.NewNatsOpener(embedded.JetStream(), cfg.Server.RunTTL(), log)
	engine := tts.NewEngine(cfg, log)
	runner := pipeline.NewRunner(
		text.NewSplitter(),
		engine,
		opener,
		cfg.Naming.MaxStemLength,
		log,
	)
	server := web.New(cfg, runner, edge.NewCatalog(log), log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		received := <-stop
		log.Info("Received signal %v, shutting down", received)

		shutdownErr := server.Shutdown()
		if shutdownErr != nil {
			log.Error("Failed to shut down server: %v", shutdownErr)
		}
	}()

	log.System(
		"Sentence-Clips-Service successfully initialized. Serving on %s",
		cfg.Server.Address(),
	)

	return server.Listen()
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
