// Command httpd runs the ticket triage HTTP service.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rakhimov-me/smax-ai/internal/api"
	"github.com/rakhimov-me/smax-ai/internal/config"
	"github.com/rakhimov-me/smax-ai/internal/database"
	"github.com/rakhimov-me/smax-ai/internal/ingest"
	"github.com/rakhimov-me/smax-ai/internal/logger"
	"github.com/rakhimov-me/smax-ai/internal/spamgate"
	"github.com/rakhimov-me/smax-ai/internal/store"
	"github.com/rakhimov-me/smax-ai/internal/telemetry"
	"github.com/rakhimov-me/smax-ai/internal/triage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(config.Path("config.yml"))
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Must(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	defer log.Sync()

	log.Info("starting triage service",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.String("source_dir", cfg.Data.SourceDir),
	)

	var (
		arch     *database.Archive
		archiver triage.Archiver
		history  *database.HistoryRepository
	)
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			log.Error("failed to open database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		arch = database.NewArchive(db)
		archiver = arch
		history = arch.History
		log.Info("database connected", logger.String("path", cfg.Database.Path))
	}

	gate := spamgate.New(spamgate.Config{
		Policy:           spamgate.Policy(cfg.Spam.Policy),
		MinLength:        cfg.Spam.MinLength,
		MaxLength:        cfg.Spam.MaxLength,
		CyrillicMinRatio: cfg.Spam.CyrillicMinRatio,
		LatinMaxRatio:    cfg.Spam.LatinMaxRatio,
		DigitMaxRatio:    cfg.Spam.DigitMaxRatio,
		SpecialMaxRatio:  cfg.Spam.SpecialMaxRatio,
	})
	corpus := ingest.New(ingest.NewExcelReader(), log)
	if arch != nil {
		records, files, err := arch.Restore(context.Background())
		if err != nil {
			log.Warn("failed to restore corpus from archive", logger.Error(err))
		} else if len(records) > 0 || len(files) > 0 {
			corpus.Restore(records, files)
		}
	}
	artifacts := store.New(cfg.Data.ModelDir)
	tel := telemetry.NewProvider()

	service := triage.New(triage.Config{
		SourceDir:           cfg.Data.SourceDir,
		ConfidenceThreshold: cfg.Model.ConfidenceThreshold,
		MinTrainingRecords:  cfg.Model.MinTrainingRecords,
		VocabularySize:      cfg.Model.VocabularySize,
		Estimators:          cfg.Model.Estimators,
	}, gate, corpus, artifacts, archiver, tel, log)

	// Pick up artifacts from a previous run; a fresh deployment has none.
	if err := service.Load(context.Background()); err != nil {
		if errors.Is(err, store.ErrNoBundle) {
			log.Info("no saved model found, starting untrained")
		} else {
			log.Warn("failed to load saved model", logger.Error(err))
		}
	}

	handler := api.NewHandler(service, history, cfg.Service.Name, cfg.Service.Version, log)
	server := api.NewServer(handler, tel, api.ServerConfig{
		Port:         cfg.Service.Port,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		Debug:        cfg.Service.Debug,
		RateLimitRPS: cfg.Service.RateLimitRPS,
	}, log)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server error", logger.Error(err))
		os.Exit(1)
	case sig := <-shutdown:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", logger.Error(err))
			os.Exit(1)
		}
		log.Info("server stopped gracefully")
	}
}
