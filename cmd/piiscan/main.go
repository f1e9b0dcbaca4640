package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/audit"
	"github.com/raaihank/pii-sentinel/internal/cache"
	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/entity"
	"github.com/raaihank/pii-sentinel/internal/etl"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"github.com/raaihank/pii-sentinel/internal/ner"
	"github.com/raaihank/pii-sentinel/internal/privacy"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the scanner and returns the process exit code
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("piiscan", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "Configuration file path")
	clearCache := fs.Bool("clear-cache", false, "Drop cached NER results before scanning")
	fs.Usage = func() { usage(fs, stdout) }

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		usage(fs, stdout)
		return 1
	}
	inputFile := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		logCfg.File = &logger.FileConfig{Enabled: true, Path: cfg.Logging.File.Path}
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	log.Info("Starting PII scanner",
		zap.String("input", inputFile),
		zap.String("output", cfg.Output.Path),
		zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			log.Info("Received shutdown signal, cancelling scan...")
			cancel()
			// a second signal falls back to the default handler and kills the process
			signal.Stop(sigChan)
		case <-ctx.Done():
		}
	}()

	services, err := initializeServices(ctx, cfg, log, *clearCache)
	if err != nil {
		log.Error("Failed to initialize services", zap.Error(err))
		return 1
	}
	defer services.cleanup()

	pipeline := etl.NewPipeline(
		services.matcher,
		services.classifier,
		services.sink(),
		&etl.Config{
			OutputPath:     cfg.Output.Path,
			BatchSize:      cfg.Pipeline.BatchSize,
			ProgressReport: cfg.Pipeline.ProgressReport,
		},
		log.WithComponent("pipeline").Logger,
	)

	result, err := pipeline.ProcessFile(ctx, inputFile)
	if err != nil {
		log.Error("Scan failed", zap.String("input", inputFile), zap.Error(err))
		return 1
	}

	if services.entityCache != nil {
		stats := services.entityCache.GetStats(ctx)
		log.Info("Entity cache statistics",
			zap.Int64("hits", stats.Hits),
			zap.Int64("misses", stats.Misses),
			zap.Int64("errors", stats.Errors),
			zap.Float64("hit_rate", stats.HitRate))
	}

	log.Info("Scan completed successfully",
		zap.String("output", cfg.Output.Path),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords))

	return 0
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "Usage: piiscan [options] <input-file>\n")
	fmt.Fprintf(w, "\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  piiscan iscp_pii_dataset.csv\n")
	fmt.Fprintf(w, "  piiscan -config configs/config.yaml records.parquet\n")
}

// services holds all initialized services
type services struct {
	matcher     *privacy.Matcher
	classifier  *entity.Classifier
	entityCache *cache.EntityCache
	auditStore  *audit.Store
}

// sink returns the audit store as a VerdictSink, or nil when auditing is off
func (s *services) sink() etl.VerdictSink {
	if s.auditStore == nil {
		return nil
	}
	return s.auditStore
}

func (s *services) cleanup() {
	if s.entityCache != nil {
		s.entityCache.Close()
	}
	if s.auditStore != nil {
		s.auditStore.Close()
	}
}

// initializeServices builds the matcher, the entity classifier and the
// optional cache and audit backends
func initializeServices(ctx context.Context, cfg *config.Config, log *logger.Logger, clearCache bool) (*services, error) {
	svc := &services{
		matcher: privacy.NewMatcher(log.WithComponent("privacy")),
	}

	log.Info("Initializing NER backend...", zap.String("backend", cfg.NER.Backend))
	recognizer, err := ner.New(cfg.NER, log.WithComponent("ner").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize NER backend: %w", err)
	}

	if cfg.Cache.Enabled {
		log.Info("Initializing entity cache...")
		entityCache, err := cache.NewEntityCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
			Fingerprint:    ner.Fingerprint(recognizer),
		}, recognizer, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize entity cache: %w", err)
		}
		svc.entityCache = entityCache
		recognizer = entityCache

		if clearCache {
			if err := entityCache.Clear(ctx); err != nil {
				svc.cleanup()
				return nil, fmt.Errorf("failed to clear entity cache: %w", err)
			}
		}
	} else if clearCache {
		log.Warn("Ignoring -clear-cache, entity cache is not enabled")
	}

	svc.classifier = entity.New(recognizer, log.WithComponent("entity").Logger)

	if cfg.Audit.Enabled {
		log.Info("Initializing audit store...")
		store, err := audit.NewStore(&audit.Config{
			DatabaseURL:     cfg.Audit.DatabaseURL,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
		}, log.WithComponent("audit").Logger)
		if err != nil {
			svc.cleanup()
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		svc.auditStore = store
	}

	return svc, nil
}
