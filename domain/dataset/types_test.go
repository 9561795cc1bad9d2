package dataset

import (
	"testing"

	"epistat/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Dataset {
	headers := []string{"id", "case_or_control", "foodA"}
	rows, _ := FromMatrix(headers, [][]string{
		{"1", "Case", "eat"},
		{"2", "Control", "not eat"},
		{"3", "Case"},
	})
	return New("sample.csv", "file", headers, rows)
}

func TestNewAssignsIdentityAndFingerprint(t *testing.T) {
	ds := sample()
	assert.False(t, core.ID(ds.ID).IsEmpty())
	assert.False(t, ds.ContentHash.IsEmpty())
	assert.Equal(t, StatusReady, ds.Status)
	assert.Equal(t, 3, ds.Len())

	again := sample()
	assert.Equal(t, ds.ContentHash, again.ContentHash, "same content must fingerprint identically")
	assert.NotEqual(t, ds.ID, again.ID)
}

func TestFromMatrixPadsShortRows(t *testing.T) {
	ds := sample()
	assert.Equal(t, "", ds.Value(2, "foodA"))
	assert.Equal(t, []string{"3", "Case", ""}, ds.Matrix()[2])
}

func TestRequireColumns(t *testing.T) {
	ds := sample()
	require.NoError(t, ds.RequireColumns("case_or_control", "foodA"))

	err := ds.RequireColumns("case_or_control", "foodB")
	require.Error(t, err)
	assert.True(t, core.IsMissingColumnError(err))
	assert.Contains(t, err.Error(), "foodB")
}

func TestColumnCopiesValues(t *testing.T) {
	ds := sample()
	values, err := ds.Column("foodA")
	require.NoError(t, err)
	assert.Equal(t, []string{"eat", "not eat", ""}, values)

	values[0] = "mutated"
	assert.Equal(t, "eat", ds.Value(0, "foodA"), "Column must not alias the dataset")

	_, err = ds.Column("nope")
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestPageClamps(t *testing.T) {
	ds := sample()
	assert.Len(t, ds.Page(0, 2), 2)
	assert.Len(t, ds.Page(2, 10), 1)
	assert.Nil(t, ds.Page(5, 10))
	assert.Len(t, ds.Page(-1, 0), 3)
}

func TestValidateHeaders(t *testing.T) {
	assert.ErrorIs(t, ValidateHeaders(nil), core.ErrNoHeaders)
	assert.Error(t, ValidateHeaders([]string{"a", "b", "a"}))
	assert.NoError(t, ValidateHeaders([]string{"a", "b"}))
}

func TestSummarize(t *testing.T) {
	ds := sample()
	s := ds.Summarize()
	assert.Equal(t, ds.ID, s.ID)
	assert.Equal(t, 3, s.RecordCount)
	assert.Equal(t, 3, s.FieldCount)
}
