package audit

import (
	"time"

	"github.com/lib/pq"
)

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// verdictRow is the row_verdicts shape. Field values are never stored.
type verdictRow struct {
	RunID          int64          `db:"run_id"`
	RowNumber      int64          `db:"row_number"`
	IsPII          bool           `db:"is_pii"`
	Standalone     bool           `db:"standalone"`
	Combinatorial  bool           `db:"combinatorial"`
	Categories     pq.StringArray `db:"categories"`
	NameSignal     bool           `db:"name_signal"`
	EmailSignal    bool           `db:"email_signal"`
	LocationSignal bool           `db:"location_signal"`
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id                    BIGSERIAL PRIMARY KEY,
	input_path            TEXT NOT NULL,
	output_path           TEXT NOT NULL,
	started_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at           TIMESTAMPTZ,
	total_records         BIGINT NOT NULL DEFAULT 0,
	pii_records           BIGINT NOT NULL DEFAULT 0,
	standalone_matches    BIGINT NOT NULL DEFAULT 0,
	combinatorial_matches BIGINT NOT NULL DEFAULT 0,
	duration_ms           BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS row_verdicts (
	run_id          BIGINT NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
	row_number      BIGINT NOT NULL,
	is_pii          BOOLEAN NOT NULL,
	standalone      BOOLEAN NOT NULL,
	combinatorial   BOOLEAN NOT NULL,
	categories      TEXT[] NOT NULL DEFAULT '{}',
	name_signal     BOOLEAN NOT NULL,
	email_signal    BOOLEAN NOT NULL,
	location_signal BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, row_number)
);`
