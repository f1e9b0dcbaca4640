package etl

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/pii-sentinel/internal/entity"
)

// IsPIIField is the column appended to every output record
const IsPIIField = "is_pii"

// Structural and encoding errors. All of them abort the run.
var (
	ErrMissingHeader   = errors.New("missing header row")
	ErrRaggedRow       = errors.New("inconsistent column count")
	ErrDuplicateField  = errors.New("duplicate field name")
	ErrReservedField   = errors.New("input already has an is_pii field")
	ErrInvalidEncoding = errors.New("input is not valid UTF-8")
	ErrNestedValue     = errors.New("nested values are not supported")
)

// Record is an ordered mapping from field name to value
type Record struct {
	Fields []string
	Values []string
}

// Get returns the value of the named field
func (r Record) Get(field string) (string, bool) {
	for i, f := range r.Fields {
		if f == field {
			return r.Values[i], true
		}
	}
	return "", false
}

// Verdict is the classification outcome of one row
type Verdict struct {
	IsPII         bool           `json:"is_pii"`
	Standalone    bool           `json:"standalone"`
	Combinatorial bool           `json:"combinatorial"`
	Categories    []string       `json:"categories,omitempty"`
	Signals       entity.Signals `json:"signals"`
}

// FormatBool renders the is_pii flag the way the output table carries it
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// RowVerdict ties a verdict to its 1-based data row number
type RowVerdict struct {
	Row int64
	Verdict
}

// VerdictSink receives per-row verdicts for auditing. Values are never passed.
type VerdictSink interface {
	BeginRun(ctx context.Context, inputPath, outputPath string) (int64, error)
	RecordVerdicts(ctx context.Context, runID int64, verdicts []RowVerdict) error
	FinishRun(ctx context.Context, runID int64, result *ProcessingResult) error
}

// ProcessingResult represents the result of processing a table
type ProcessingResult struct {
	TotalRecords         int64            `json:"total_records"`
	PIIRecords           int64            `json:"pii_records"`
	StandaloneMatches    int64            `json:"standalone_matches"`
	CombinatorialMatches int64            `json:"combinatorial_matches"`
	CategoryCounts       map[string]int64 `json:"category_counts"`
	Duration             time.Duration    `json:"duration"`
	EntityTime           time.Duration    `json:"entity_time"`
}

func newProcessingResult() *ProcessingResult {
	return &ProcessingResult{CategoryCounts: make(map[string]int64)}
}

// Config contains pipeline configuration
type Config struct {
	OutputPath     string `yaml:"output_path" mapstructure:"output_path"`
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`           // verdicts per audit flush
	ProgressReport int    `yaml:"progress_report" mapstructure:"progress_report"` // rows between progress logs
}

// FileFormat represents supported input formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".jsonl", ".ndjson", ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}
