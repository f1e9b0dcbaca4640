package etl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/entity"
	"github.com/raaihank/pii-sentinel/internal/privacy"
)

// PatternMatcher detects and redacts standalone PII
type PatternMatcher interface {
	Match(text string) privacy.MatchResult
	RedactAll(values []string) []string
}

// EntityClassifier applies the combinatorial rule to a text
type EntityClassifier interface {
	Classify(ctx context.Context, text string) (entity.Result, error)
}

// Pipeline classifies and redacts records one at a time, in input order
type Pipeline struct {
	matcher    PatternMatcher
	classifier EntityClassifier
	sink       VerdictSink
	config     *Config
	logger     *zap.Logger
}

// NewPipeline creates a new pipeline. sink may be nil to disable auditing.
func NewPipeline(
	matcher PatternMatcher,
	classifier EntityClassifier,
	sink VerdictSink,
	config *Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		matcher:    matcher,
		classifier: classifier,
		sink:       sink,
		config:     config,
		logger:     logger,
	}
}

// JoinText builds the classification text for a row
func JoinText(values []string) string {
	return strings.Join(values, " ")
}

// ClassifyRow runs both classifiers on the row's joined text
func (p *Pipeline) ClassifyRow(ctx context.Context, values []string) (Verdict, error) {
	text := JoinText(values)

	match := p.matcher.Match(text)
	combo, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		IsPII:         match.Matched || combo.Combinatorial,
		Standalone:    match.Matched,
		Combinatorial: combo.Combinatorial,
		Categories:    match.Categories(),
		Signals:       combo.Signals,
	}, nil
}

// transform returns the output values for a classified row: every field
// redacted when the row is PII, untouched otherwise, then the is_pii flag.
func (p *Pipeline) transform(values []string, verdict Verdict) []string {
	out := make([]string, 0, len(values)+1)
	if verdict.IsPII {
		out = append(out, p.matcher.RedactAll(values)...)
	} else {
		out = append(out, values...)
	}
	return append(out, FormatBool(verdict.IsPII))
}

// ProcessRecord classifies a record and returns its output form
func (p *Pipeline) ProcessRecord(ctx context.Context, rec Record) (Record, Verdict, error) {
	if len(rec.Fields) != len(rec.Values) {
		return Record{}, Verdict{}, fmt.Errorf("%w: %d fields, %d values", ErrRaggedRow, len(rec.Fields), len(rec.Values))
	}

	verdict, err := p.ClassifyRow(ctx, rec.Values)
	if err != nil {
		return Record{}, Verdict{}, err
	}

	fields := make([]string, 0, len(rec.Fields)+1)
	fields = append(fields, rec.Fields...)
	fields = append(fields, IsPIIField)

	return Record{Fields: fields, Values: p.transform(rec.Values, verdict)}, verdict, nil
}

// Process streams every record from reader to writer without auditing
func (p *Pipeline) Process(ctx context.Context, reader RecordReader, writer RecordWriter) (*ProcessingResult, error) {
	return p.run(ctx, reader, writer, nil)
}

// ProcessFile processes an input table into the configured output file.
// Both files are closed on every exit path; rows already written stay
// written when a later row fails.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath string) (result *ProcessingResult, err error) {
	if samePath(inputPath, p.config.OutputPath) {
		return nil, fmt.Errorf("output path %s must differ from the input", p.config.OutputPath)
	}

	format := DetectFileFormat(inputPath)
	p.logger.Info("Starting scan",
		zap.String("input", inputPath),
		zap.String("format", string(format)),
		zap.String("output", p.config.OutputPath))

	reader, err := OpenReader(inputPath, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close input: %w", cerr)
		}
	}()

	writer, err := CreateCSVWriter(p.config.OutputPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var audit *auditBatch
	if p.sink != nil {
		runID, err := p.sink.BeginRun(ctx, inputPath, p.config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to begin audit run: %w", err)
		}
		audit = newAuditBatch(p.sink, runID, p.config.BatchSize)
		p.logger.Info("Audit run started", zap.Int64("run_id", runID))
	}

	result, err = p.run(ctx, reader, writer, audit)
	if err != nil {
		return result, err
	}

	if audit != nil {
		if err := audit.flush(ctx); err != nil {
			return result, err
		}
		if err := p.sink.FinishRun(ctx, audit.runID, result); err != nil {
			return result, fmt.Errorf("failed to finish audit run: %w", err)
		}
	}

	return result, nil
}

// run drives the per-row state machine: read, classify, redact, emit
func (p *Pipeline) run(ctx context.Context, reader RecordReader, writer RecordWriter, audit *auditBatch) (*ProcessingResult, error) {
	start := time.Now()
	result := newProcessingResult()

	header := reader.Header()
	outHeader := make([]string, 0, len(header)+1)
	outHeader = append(outHeader, header...)
	outHeader = append(outHeader, IsPIIField)
	if err := writer.WriteHeader(outHeader); err != nil {
		return result, err
	}

	p.logger.Info("Header detected", zap.Strings("columns", header))

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("scan aborted after %d rows: %w", result.TotalRecords, err)
		}

		values, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, err
		}
		row := result.TotalRecords + 1

		if len(values) != len(header) {
			return result, fmt.Errorf("row %d: %w", row, ErrRaggedRow)
		}

		entityStart := time.Now()
		verdict, err := p.ClassifyRow(ctx, values)
		result.EntityTime += time.Since(entityStart)
		if err != nil {
			return result, fmt.Errorf("row %d: %w", row, err)
		}

		if err := writer.Write(p.transform(values, verdict)); err != nil {
			return result, fmt.Errorf("row %d: %w", row, err)
		}

		result.TotalRecords = row
		result.record(verdict)

		p.logger.Debug("Row classified",
			zap.Int64("row", row),
			zap.Bool("is_pii", verdict.IsPII),
			zap.Strings("categories", verdict.Categories),
			zap.Int("signals", verdict.Signals.Count()))

		if audit != nil {
			if err := audit.add(ctx, RowVerdict{Row: row, Verdict: verdict}); err != nil {
				return result, err
			}
		}

		if p.config.ProgressReport > 0 && row%int64(p.config.ProgressReport) == 0 {
			p.reportProgress(result, start)
		}
	}

	result.Duration = time.Since(start)

	p.logger.Info("Scan completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Int64("standalone_matches", result.StandaloneMatches),
		zap.Int64("combinatorial_matches", result.CombinatorialMatches),
		zap.Any("category_counts", result.CategoryCounts),
		zap.Duration("duration", result.Duration),
		zap.Duration("entity_time", result.EntityTime))

	return result, nil
}

// record folds one verdict into the run totals
func (r *ProcessingResult) record(v Verdict) {
	if v.IsPII {
		r.PIIRecords++
	}
	if v.Standalone {
		r.StandaloneMatches++
	}
	if v.Combinatorial {
		r.CombinatorialMatches++
	}
	for _, c := range v.Categories {
		r.CategoryCounts[c]++
	}
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult, start time.Time) {
	elapsed := time.Since(start)
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

// samePath reports whether a and b name the same file
func samePath(a, b string) bool {
	if ai, err := os.Stat(a); err == nil {
		if bi, err := os.Stat(b); err == nil {
			return os.SameFile(ai, bi)
		}
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// auditBatch buffers verdicts and flushes them to the sink in batches
type auditBatch struct {
	sink    VerdictSink
	runID   int64
	size    int
	pending []RowVerdict
}

func newAuditBatch(sink VerdictSink, runID int64, size int) *auditBatch {
	if size <= 0 {
		size = 1
	}
	return &auditBatch{sink: sink, runID: runID, size: size}
}

func (b *auditBatch) add(ctx context.Context, v RowVerdict) error {
	b.pending = append(b.pending, v)
	if len(b.pending) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *auditBatch) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.sink.RecordVerdicts(ctx, b.runID, b.pending); err != nil {
		return fmt.Errorf("failed to record verdicts: %w", err)
	}
	b.pending = nil
	return nil
}
