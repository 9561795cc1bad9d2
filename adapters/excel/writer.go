package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"epistat/domain/association"
	"epistat/domain/dataset"
)

const (
	overallSheet = "Overall"
	tablesSheet  = "Tables"
)

var overallHeaders = []string{
	"Exposure", "Odds Ratio", "Chi-Square", "p-value", "DoF",
	"Eat / Case", "Eat / Control", "Not Eat / Case", "Not Eat / Control", "Note",
}

// WriteReport writes the overall result as a workbook with one summary sheet
// and the full observed contingency tables on a second sheet.
func WriteReport(w io.Writer, report *association.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overallSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(tablesSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := setRow(f, overallSheet, 1, toCells(overallHeaders)); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(overallHeaders), 1)
	if err := f.SetCellStyle(overallSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, res := range report.Results {
		d := res.Table.Display()
		row := []interface{}{
			res.Exposure,
			measureCell(res.OddsRatio),
			measureCell(res.ChiSquare),
			measureCell(res.PValue),
			res.DegreesOfFreedom,
			d.Counts[0][0], d.Counts[0][1], d.Counts[1][0], d.Counts[1][1],
			resultNote(res),
		}
		if err := setRow(f, overallSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := writeTables(f, report, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writeTables lays out each exposure's observed table under a bold title row
func writeTables(f *excelize.File, report *association.Report, bold int) error {
	rowIdx := 1
	for _, res := range report.Results {
		title, _ := excelize.CoordinatesToCellName(1, rowIdx)
		if err := f.SetCellValue(tablesSheet, title, res.Exposure); err != nil {
			return err
		}
		if err := f.SetCellStyle(tablesSheet, title, title, bold); err != nil {
			return err
		}
		rowIdx++

		header := []interface{}{res.OutcomeColumn}
		for _, col := range res.Table.Columns {
			header = append(header, col)
		}
		if err := setRow(f, tablesSheet, rowIdx, header); err != nil {
			return err
		}
		rowIdx++

		for _, label := range res.Table.Rows {
			cells := []interface{}{label}
			for _, col := range res.Table.Columns {
				cells = append(cells, res.Table.Count(label, col))
			}
			if err := setRow(f, tablesSheet, rowIdx, cells); err != nil {
				return err
			}
			rowIdx++
		}
		rowIdx++
	}
	return nil
}

// WriteDataset writes a dataset to the first sheet of a new workbook
func WriteDataset(w io.Writer, ds *dataset.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if err := setRow(f, sheet, 1, toCells(ds.Headers)); err != nil {
		return err
	}
	for i, record := range ds.Matrix() {
		if err := setRow(f, sheet, i+2, toCells(record)); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func measureCell(m association.Measure) interface{} {
	if !m.Defined {
		return "undefined"
	}
	return m.Value
}

func resultNote(res association.Result) string {
	switch {
	case res.Error != "":
		return res.Error
	case res.OddsRatioNote != "" && res.ChiSquareNote != "" && res.OddsRatioNote != res.ChiSquareNote:
		return res.OddsRatioNote + "; " + res.ChiSquareNote
	case res.OddsRatioNote != "":
		return res.OddsRatioNote
	default:
		return res.ChiSquareNote
	}
}
