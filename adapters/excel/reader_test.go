package excel

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epistat/domain/core"
	"epistat/domain/dataset"
)

const outbreakCSV = "case_or_control,foodA,foodB\n" +
	"Case,eat,not eat\n" +
	"Control,not eat,eat\n" +
	"Case, eat,\n"

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDetectFileType(t *testing.T) {
	for name, want := range map[string]string{
		"data.csv":   FileTypeCSV,
		"DATA.CSV":   FileTypeCSV,
		"sheet.xlsx": FileTypeXLSX,
	} {
		got, err := DetectFileType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectFileType("notes.pdf")
	assert.Error(t, err)
}

func TestReadDataset_CSVKeepsRawCells(t *testing.T) {
	path := writeTemp(t, "outbreak.csv", outbreakCSV)

	ds, err := NewDataReader(path).ReadDataset()
	require.NoError(t, err)

	assert.Equal(t, []string{"case_or_control", "foodA", "foodB"}, ds.Headers)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, "eat", ds.Value(0, "foodA"))
	assert.Equal(t, " eat", ds.Value(2, "foodA"))
	assert.Equal(t, "", ds.Value(2, "foodB"))
	assert.Equal(t, "outbreak.csv", ds.OriginalFilename)
	assert.Equal(t, "file", ds.Source)
	assert.False(t, ds.ContentHash.IsEmpty())
}

func TestReadDataset_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "absent.csv")).ReadDataset()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadFrom_StripsBOMAndPadsShortRows(t *testing.T) {
	src := "\xef\xbb\xbfcase_or_control,foodA,foodB\nCase,eat\n"

	ds, err := ReadFrom(strings.NewReader(src), "upload.csv")
	require.NoError(t, err)

	assert.Equal(t, "case_or_control", ds.Headers[0])
	assert.Equal(t, "", ds.Value(0, "foodB"))
	assert.Equal(t, "upload", ds.Source)
}

func TestReadFrom_Rejections(t *testing.T) {
	_, err := ReadFrom(strings.NewReader(""), "empty.csv")
	assert.True(t, errors.Is(err, core.ErrNoHeaders))

	_, err = ReadFrom(strings.NewReader("a,b\n"), "headers-only.csv")
	assert.True(t, errors.Is(err, core.ErrEmptyDataset))

	_, err = ReadFrom(strings.NewReader("a,a\n1,2\n"), "dup.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column names")

	_, err = ReadFrom(strings.NewReader("a,b\n1,2\n"), "data.json")
	assert.Error(t, err)
}

func TestReadFrom_XLSXRoundTrip(t *testing.T) {
	headers := []string{"case_or_control", "foodA"}
	rows, err := dataset.FromMatrix(headers, [][]string{
		{"Case", "eat"},
		{"Control", "not eat"},
		{"Case", ""},
	})
	require.NoError(t, err)
	original := dataset.New("fixture.xlsx", "file", headers, rows)

	var buf bytes.Buffer
	require.NoError(t, WriteDataset(&buf, original))

	ds, err := ReadFrom(&buf, "fixture.xlsx")
	require.NoError(t, err)

	assert.Equal(t, headers, ds.Headers)
	assert.Equal(t, original.Matrix(), ds.Matrix())
	assert.Equal(t, original.ContentHash, ds.ContentHash)
}
