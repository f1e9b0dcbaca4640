package etl

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/segmentio/parquet-go"
)

// RecordReader streams records in input order
type RecordReader interface {
	// Header returns the field names shared by every record
	Header() []string
	// Read returns the next record's values, or io.EOF
	Read() ([]string, error)
	Close() error
}

// OpenReader opens path with the reader for its format
func OpenReader(path string, format FileFormat) (RecordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	var reader RecordReader
	switch format {
	case FormatCSV:
		reader, err = newCSVReader(file)
	case FormatJSON:
		reader, err = newJSONReader(file)
	case FormatParquet:
		reader, err = newParquetReader(file)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		file.Close()
		return nil, err
	}

	return reader, nil
}

// validateHeader rejects empty, duplicate, reserved, or non-UTF-8 field names
func validateHeader(header []string) error {
	if len(header) == 0 {
		return ErrMissingHeader
	}
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if !utf8.ValidString(name) {
			return fmt.Errorf("header: %w", ErrInvalidEncoding)
		}
		if name == IsPIIField {
			return ErrReservedField
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateField, name)
		}
		seen[name] = true
	}
	return nil
}

func validateValues(row int64, values []string) error {
	for i, v := range values {
		if !utf8.ValidString(v) {
			return fmt.Errorf("row %d column %d: %w", row, i+1, ErrInvalidEncoding)
		}
	}
	return nil
}

// csvReader reads a header-driven CSV table
type csvReader struct {
	file   *os.File
	reader *csv.Reader
	header []string
	row    int64
}

func newCSVReader(file *os.File) (*csvReader, error) {
	reader := csv.NewReader(file)
	// every record must have as many fields as the header
	reader.FieldsPerRecord = 0
	// bare quotes inside unquoted free text are kept as-is
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	return &csvReader{file: file, reader: reader, header: header}, nil
}

func (r *csvReader) Header() []string { return r.header }

func (r *csvReader) Read() ([]string, error) {
	values, err := r.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.row++
	if err != nil {
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("row %d: %w: got %d fields, header has %d", r.row, ErrRaggedRow, len(values), len(r.header))
		}
		return nil, fmt.Errorf("failed to read CSV record: %w", err)
	}
	if err := validateValues(r.row, values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *csvReader) Close() error { return r.file.Close() }

// jsonReader reads one JSON object per line. Field order comes from the
// first object; every later object must carry exactly the same keys.
type jsonReader struct {
	file    *os.File
	decoder *json.Decoder
	header  []string
	index   map[string]int
	pending []string
	row     int64
}

func newJSONReader(file *os.File) (*jsonReader, error) {
	decoder := json.NewDecoder(file)
	decoder.UseNumber()

	r := &jsonReader{file: file, decoder: decoder}

	keys, values, err := r.decodeObject()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, err
	}
	if err := validateHeader(keys); err != nil {
		return nil, err
	}

	r.header = keys
	r.index = make(map[string]int, len(keys))
	for i, k := range keys {
		r.index[k] = i
	}
	r.pending = values
	return r, nil
}

func (r *jsonReader) Header() []string { return r.header }

func (r *jsonReader) Read() ([]string, error) {
	if r.pending != nil {
		values := r.pending
		r.pending = nil
		r.row++
		if err := validateValues(r.row, values); err != nil {
			return nil, err
		}
		return values, nil
	}

	keys, raw, err := r.decodeObject()
	if err != nil {
		return nil, err
	}
	r.row++

	if len(keys) != len(r.header) {
		return nil, fmt.Errorf("row %d: %w: got %d fields, header has %d", r.row, ErrRaggedRow, len(keys), len(r.header))
	}
	values := make([]string, len(r.header))
	for i, k := range keys {
		pos, ok := r.index[k]
		if !ok {
			return nil, fmt.Errorf("row %d: %w: unexpected field %q", r.row, ErrRaggedRow, k)
		}
		values[pos] = raw[i]
	}

	if err := validateValues(r.row, values); err != nil {
		return nil, err
	}
	return values, nil
}

// decodeObject reads one top-level object preserving key order
func (r *jsonReader) decodeObject() ([]string, []string, error) {
	tok, err := r.decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		return nil, nil, fmt.Errorf("failed to read JSON record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("failed to read JSON record: expected object, got %v", tok)
	}

	var keys, values []string
	seen := make(map[string]bool)
	for r.decoder.More() {
		keyTok, err := r.decoder.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read JSON key: %w", err)
		}
		key := keyTok.(string)
		if seen[key] {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateField, key)
		}
		seen[key] = true

		valTok, err := r.decoder.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read JSON value: %w", err)
		}
		value, err := scalarString(valTok)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}

		keys = append(keys, key)
		values = append(values, value)
	}

	// closing '}'
	if _, err := r.decoder.Token(); err != nil {
		return nil, nil, fmt.Errorf("failed to read JSON record: %w", err)
	}

	return keys, values, nil
}

func scalarString(tok json.Token) (string, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", nil
	default:
		return "", ErrNestedValue
	}
}

func (r *jsonReader) Close() error { return r.file.Close() }

// parquetReader reads a flat Parquet file row by row
type parquetReader struct {
	file   *os.File
	reader *parquet.Reader
	header []string
	buf    []parquet.Row
	row    int64
	done   bool
}

func newParquetReader(file *os.File) (*parquetReader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat Parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	reader := parquet.NewReader(pf)

	fields := pf.Schema().Fields()
	header := make([]string, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			reader.Close()
			return nil, fmt.Errorf("column %q: %w", field.Name(), ErrNestedValue)
		}
		header[i] = field.Name()
	}
	if err := validateHeader(header); err != nil {
		reader.Close()
		return nil, err
	}

	return &parquetReader{
		file:   file,
		reader: reader,
		header: header,
		buf:    make([]parquet.Row, 1),
	}, nil
}

func (r *parquetReader) Header() []string { return r.header }

func (r *parquetReader) Read() ([]string, error) {
	if r.done {
		return nil, io.EOF
	}

	n, err := r.reader.ReadRows(r.buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			r.done = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read Parquet record: %w", err)
	}
	if err == io.EOF {
		r.done = true
	} else if err != nil {
		return nil, fmt.Errorf("failed to read Parquet record: %w", err)
	}
	r.row++

	values := make([]string, len(r.header))
	for _, v := range r.buf[0] {
		col := v.Column()
		if col < 0 || col >= len(values) {
			return nil, fmt.Errorf("row %d: %w", r.row, ErrRaggedRow)
		}
		values[col] = parquetString(v)
	}

	if err := validateValues(r.row, values); err != nil {
		return nil, err
	}
	return values, nil
}

func parquetString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func (r *parquetReader) Close() error {
	r.reader.Close()
	return r.file.Close()
}
