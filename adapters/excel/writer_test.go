package excel

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"epistat/domain/association"
)

func tableOf(t *testing.T, pairs ...[3]interface{}) association.ContingencyTable {
	t.Helper()
	var outcomes, exposures []string
	for _, p := range pairs {
		for i := 0; i < p[2].(int); i++ {
			outcomes = append(outcomes, p[0].(string))
			exposures = append(exposures, p[1].(string))
		}
	}
	table, err := association.Tabulate(outcomes, exposures)
	require.NoError(t, err)
	return table
}

func TestWriteReport(t *testing.T) {
	report := &association.Report{
		OutcomeColumn: "case_or_control",
		Exposures:     []string{"foodA", "foodB"},
		Results: []association.Result{
			{
				Exposure:         "foodA",
				OutcomeColumn:    "case_or_control",
				OddsRatio:        association.Defined(16.0 / 3.0),
				ChiSquare:        association.Defined(2.5),
				PValue:           association.Defined(0.11),
				DegreesOfFreedom: 1,
				Table: tableOf(t,
					[3]interface{}{"Control", "eat", 10},
					[3]interface{}{"Control", "not eat", 5},
					[3]interface{}{"Case", "eat", 3},
					[3]interface{}{"Case", "not eat", 8},
				),
			},
			{
				Exposure:      "foodB",
				OutcomeColumn: "case_or_control",
				Error:         `expected column is absent: "foodB"`,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, report))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{overallSheet, tablesSheet}, f.GetSheetList())

	rows, err := f.GetRows(overallSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, overallHeaders, rows[0])
	assert.Equal(t, "foodA", rows[1][0])
	assert.Equal(t, []string{"3", "10", "8", "5"}, rows[1][5:9])
	assert.Equal(t, "undefined", rows[2][1])
	assert.Equal(t, `expected column is absent: "foodB"`, rows[2][9])

	raw, err := f.GetCellValue(overallSheet, "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	or, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err)
	assert.InDelta(t, 5.3333, or, 1e-4)

	tables, err := f.GetRows(tablesSheet)
	require.NoError(t, err)
	assert.Equal(t, "foodA", tables[0][0])
	assert.Equal(t, []string{"case_or_control", "eat", "not eat"}, tables[1])
	assert.Equal(t, []string{"Case", "3", "8"}, tables[2])
	assert.Equal(t, []string{"Control", "10", "5"}, tables[3])
}
