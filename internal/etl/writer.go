package etl

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// RecordWriter emits records in the order they are written
type RecordWriter interface {
	WriteHeader(fields []string) error
	Write(values []string) error
	// Close flushes buffered records and releases the destination
	Close() error
}

// csvWriter writes an excel-dialect CSV table (CRLF line endings)
type csvWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateCSVWriter creates (or truncates) the output table at path
func CreateCSVWriter(path string) (RecordWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	writer := csv.NewWriter(file)
	writer.UseCRLF = true

	return &csvWriter{file: file, writer: writer}, nil
}

func (w *csvWriter) WriteHeader(fields []string) error {
	return w.Write(fields)
}

func (w *csvWriter) Write(values []string) error {
	if err := w.writer.Write(values); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}
	return nil
}

func (w *csvWriter) Close() error {
	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush output: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output: %w", closeErr)
	}
	return nil
}
