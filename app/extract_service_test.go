package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"intenttune/adapters/excel"
	"intenttune/internal"
	"intenttune/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractService() *ExtractService {
	cfg := excel.DefaultExcelConfig()
	return NewExtractService(excel.NewDataReader(cfg), excel.NewDataWriter(cfg), internal.NewLogger(internal.LogLevelError))
}

func TestExtractServiceRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "responses.xlsx")
	out := filepath.Join(dir, "processed.xlsx")
	writeWorkbook(t, in, [][]string{
		{"prompt", "assistant_response"},
		{"p1", "Here you go:\n```json\n[{\"robot\": \"Ready?\", \"user_answer\": \"yes\", \"user_intent\": \"agree\"}, 7]\n```"},
		{"p2", `{"robot": "Again?", "user_answer": "no", "user_intent": "refuse", "score": 0.5}`},
		{"p3", "not json at all"},
	})

	n, err := newExtractService().Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	table, err := excel.NewDataReader(excel.DefaultExcelConfig()).ReadTable(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, []string{"robot", "user_answer", "user_intent", "score"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "agree", table.Rows[0]["user_intent"])
	assert.Equal(t, "", table.Rows[0]["score"])
	assert.Equal(t, "0.5", table.Rows[1]["score"])
}

func TestExtractServiceNothingExtracted(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "responses.xlsx")
	out := filepath.Join(dir, "processed.xlsx")
	writeWorkbook(t, in, [][]string{
		{"assistant_response"},
		{"[1, 2, 3]"},
		{"{broken"},
	})

	n, err := newExtractService().Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no output file without items")
}

func TestExtractServiceMissingColumn(t *testing.T) {
	in := filepath.Join(t.TempDir(), "responses.xlsx")
	writeWorkbook(t, in, [][]string{{"prompt"}, {"p1"}})

	_, err := newExtractService().Run(context.Background(), in, filepath.Join(t.TempDir(), "out.xlsx"))
	assert.Equal(t, errors.CodeDatasetError, errors.GetCode(err))
}
