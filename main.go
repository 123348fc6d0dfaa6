// Fern screens free-text organization names against curated reference
// datasets. This binary wires the engine to PostgreSQL and runs a batch of
// queries from a JSON file; callers embedding the engine use pkg/matching
// directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/database"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/Ramsey-B/stem/pkg/tracing/exporters"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/dataset"
	"github.com/Ramsey-B/fern/internal/repositories/referenceentity"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

func main() {
	inputPath := flag.String("input", "", "path to a JSON file of match queries")
	outputPath := flag.String("output", "", "path to write the JSON report (default: stdout)")
	flag.Parse()

	if err := run(*inputPath, *outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath string) error {
	if inputPath == "" {
		return errors.New("missing required -input flag")
	}

	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return errors.Wrap(err, "failed to bind config")
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := initTracing(ctx, cfg)
		if err != nil {
			return errors.Wrap(err, "failed to init tracing")
		}
		defer shutdown(ctx)
	}

	db, err := connectDatabase(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(cfg, logger, db); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	if cfg.MetricsPort > 0 {
		go serveMetrics(cfg.MetricsPort, logger)
	}

	if err := logDatasetInventory(ctx, logger, dataset.NewRepository(db, logger)); err != nil {
		return errors.Wrap(err, "failed to read dataset inventory")
	}

	store := referenceentity.NewRepository(db, logger)
	retriever := matching.NewRetriever(store, logger, matching.RetrieverConfig{
		Timeout:    cfg.StoreTimeout,
		WindowSize: cfg.CandidateWindowSize,
	})
	matchCache := cache.New(cfg.CacheCapacity, cfg.CacheTTL, nil)
	service := matching.NewService(logger, retriever, matchCache)
	coordinator := matching.NewBatchCoordinator(service, logger, cfg.BatchConcurrency)

	queries, err := readQueries(inputPath)
	if err != nil {
		return err
	}

	result, err := coordinator.Execute(ctx, queries)
	if err != nil {
		return errors.Wrap(err, "batch execution failed")
	}

	return writeReport(outputPath, result)
}

// newLogger builds the root ectologger with a zap JSON sink.
func newLogger(cfg config.Config) ectologger.Logger {
	var zlog *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		zlog = zap.NewNop()
	}

	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		b, merr := json.Marshal(msg)
		if merr != nil {
			return
		}
		zlog.Info(string(b))
	})
}

func connectDatabase(cfg config.Config, logger ectologger.Logger) (database.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, err
	}

	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	return database.NewDatabaseInstance(sqlxDB, logger), nil
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db database.DB) error {
	driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return ms.Migrate(cfg.DatabaseName, driver)
}

func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}

// logDatasetInventory reports which reference datasets the batch will screen
// against. An empty inventory is almost always an operator mistake, so it is
// called out loudly before any query runs.
func logDatasetInventory(ctx context.Context, logger ectologger.Logger, repo *dataset.Repository) error {
	datasets, err := repo.ListActive(ctx)
	if err != nil {
		return err
	}

	if len(datasets) == 0 {
		logger.Warn("No active reference datasets; every query will return zero matches")
		return nil
	}

	counts, err := repo.EntryCounts(ctx)
	if err != nil {
		return err
	}

	for _, d := range datasets {
		logger.WithFields(map[string]any{
			"dataset":     d.Name,
			"entry_count": counts[d.Name],
		}).Info("Active reference dataset")
	}

	return nil
}

func serveMetrics(port int, logger ectologger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Infof("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("Metrics listener stopped")
	}
}

func readQueries(path string) ([]models.MatchQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input file")
	}

	var queries []models.MatchQuery
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, errors.Wrap(err, "failed to parse input file")
	}

	return queries, nil
}

func writeReport(path string, result *models.BatchResult) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}

	if path == "" {
		fmt.Println(string(out))
		return nil
	}

	return errors.Wrap(os.WriteFile(path, out, 0o644), "failed to write report")
}
