package etl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parquetPerson struct {
	Name string `parquet:"name"`
	Note string `parquet:"note"`
	Age  int64  `parquet:"age"`
}

func TestParquetReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.parquet")
	require.NoError(t, parquet.WriteFile(path, []parquetPerson{
		{Name: "Alice", Note: "call 9876543210 now", Age: 31},
		{Name: "Bob", Note: "just chatting", Age: 40},
	}))

	r, err := OpenReader(path, FormatParquet)
	require.NoError(t, err)
	defer r.Close()

	header := r.Header()
	assert.ElementsMatch(t, []string{"name", "note", "age"}, header)

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	first, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "Alice", first[col["name"]])
	assert.Equal(t, "call 9876543210 now", first[col["note"]])
	assert.Equal(t, "31", first[col["age"]])

	second, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "Bob", second[col["name"]])

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestProcessParquetFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "people.parquet")
	require.NoError(t, parquet.WriteFile(input, []parquetPerson{
		{Name: "Alice", Note: "call 9876543210 now", Age: 31},
		{Name: "Bob", Note: "just chatting", Age: 40},
	}))

	p, out := newTestPipeline(t, wordRecognizer(testWords), nil)
	result, err := p.ProcessFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalRecords)
	assert.Equal(t, int64(1), result.PIIRecords)

	rows := readOutput(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, IsPIIField, rows[0][len(rows[0])-1])
	assert.Contains(t, rows[1], "call 98XXXXX210 now")
	assert.Equal(t, "True", rows[1][3])
	assert.Equal(t, "False", rows[2][3])
}

func TestParquetReaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not a parquet file"), 0o644))

	_, err := OpenReader(path, FormatParquet)
	assert.Error(t, err)
}

func TestCSVReaderHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,note\n"), 0o644))

	r, err := OpenReader(path, FormatCSV)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"name", "note"}, r.Header())
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestCSVWriterUsesCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	w, err := CreateCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader([]string{"a", IsPIIField}))
	require.NoError(t, w.Write([]string{"x, y", "True"}))
	require.NoError(t, w.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,is_pii\r\n\"x, y\",True\r\n", string(content))
}
