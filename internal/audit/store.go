// Package audit persists per-row PII verdicts to PostgreSQL. Only verdict
// metadata is stored; record values never leave the output table.
package audit

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/etl"
)

// maxRowsPerInsert keeps a multi-row insert under PostgreSQL's bind
// parameter limit (9 columns per row).
const maxRowsPerInsert = 1000

// Store records scan runs and row verdicts
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ etl.VerdictSink = (*Store)(nil)

// NewStore creates a new audit store and ensures its tables exist
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := newStore(db, logger)

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Audit store initialized successfully",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

func newStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// initialize checks the connection and creates the audit tables
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create audit tables: %w", err)
	}

	return nil
}

// BeginRun inserts a scan_runs row and returns its id
func (s *Store) BeginRun(ctx context.Context, inputPath, outputPath string) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO scan_runs (input_path, output_path) VALUES ($1, $2) RETURNING id`,
		inputPath, outputPath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan run: %w", err)
	}
	return id, nil
}

// RecordVerdicts batch-inserts verdicts for a run
func (s *Store) RecordVerdicts(ctx context.Context, runID int64, verdicts []etl.RowVerdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	start := time.Now()
	rows := toVerdictRows(runID, verdicts)

	const query = `
		INSERT INTO row_verdicts (
			run_id, row_number, is_pii, standalone, combinatorial,
			categories, name_signal, email_signal, location_signal)
		VALUES (
			:run_id, :row_number, :is_pii, :standalone, :combinatorial,
			:categories, :name_signal, :email_signal, :location_signal)`

	for len(rows) > 0 {
		n := min(len(rows), maxRowsPerInsert)
		if _, err := s.db.NamedExecContext(ctx, query, rows[:n]); err != nil {
			s.logger.Error("Batch insert failed", zap.Int64("run_id", runID), zap.Error(err))
			return fmt.Errorf("batch insert failed: %w", err)
		}
		rows = rows[n:]
	}

	s.logger.Debug("Verdict batch recorded",
		zap.Int64("run_id", runID),
		zap.Int("verdicts", len(verdicts)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// FinishRun stores the run totals
func (s *Store) FinishRun(ctx context.Context, runID int64, result *etl.ProcessingResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scan_runs SET
			finished_at = now(),
			total_records = $2,
			pii_records = $3,
			standalone_matches = $4,
			combinatorial_matches = $5,
			duration_ms = $6
		WHERE id = $1`,
		runID,
		result.TotalRecords,
		result.PIIRecords,
		result.StandaloneMatches,
		result.CombinatorialMatches,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to update scan run: %w", err)
	}

	s.logger.Info("Audit run finished",
		zap.Int64("run_id", runID),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords))
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toVerdictRows(runID int64, verdicts []etl.RowVerdict) []verdictRow {
	rows := make([]verdictRow, len(verdicts))
	for i, v := range verdicts {
		categories := v.Categories
		if categories == nil {
			categories = []string{}
		}
		rows[i] = verdictRow{
			RunID:          runID,
			RowNumber:      v.Row,
			IsPII:          v.IsPII,
			Standalone:     v.Standalone,
			Combinatorial:  v.Combinatorial,
			Categories:     categories,
			NameSignal:     v.Signals.Name,
			EmailSignal:    v.Signals.Email,
			LocationSignal: v.Signals.Location,
		}
	}
	return rows
}

// maskDatabaseURL hides the password in a database URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
