// Package outbreak generates synthetic food-borne outbreak investigations:
// a case-control table where some foods raise the odds of illness and others
// are noise.
package outbreak

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"

	"github.com/xuri/excelize/v2"

	"epistat/domain/association"
)

// Food describes one exposure column. PCase and PControl are the probabilities
// that a case or a control ate the food; equal values make it a noise column.
type Food struct {
	Name     string
	PCase    float64
	PControl float64
}

// OddsRatio is the population odds ratio implied by the probabilities, in the
// analyzer's orientation: controls' odds of eating over cases' odds. A culprit
// food therefore sits below 1.
func (f Food) OddsRatio() float64 {
	return (f.PControl / (1 - f.PControl)) / (f.PCase / (1 - f.PCase))
}

// Dataset is a generated investigation in reader-ready form
type Dataset struct {
	Headers []string
	Rows    [][]string

	// Cases[i] reports whether row i is a case
	Cases []bool
}

type Config struct {
	Rows          int
	Seed          int64
	OutcomeColumn string
	CaseFraction  float64
	Foods         []Food

	// MissingRate blanks this fraction of exposure cells
	MissingRate float64
}

// DefaultConfig mirrors the shape of the classic church-supper investigation:
// foodA is the culprit, the rest are background.
func DefaultConfig() Config {
	return Config{
		Rows:          200,
		Seed:          42,
		OutcomeColumn: "case_or_control",
		CaseFraction:  0.4,
		Foods: []Food{
			{Name: "foodA", PCase: 0.8, PControl: 0.3},
			{Name: "foodB", PCase: 0.5, PControl: 0.5},
			{Name: "foodC", PCase: 0.35, PControl: 0.4},
			{Name: "foodD", PCase: 0.6, PControl: 0.55},
			{Name: "foodE", PCase: 0.2, PControl: 0.2},
		},
	}
}

func validate(cfg Config) error {
	if cfg.Rows <= 0 {
		return fmt.Errorf("rows must be > 0")
	}
	if cfg.OutcomeColumn == "" {
		return fmt.Errorf("outcome column is required")
	}
	if cfg.CaseFraction <= 0 || cfg.CaseFraction >= 1 {
		return fmt.Errorf("case fraction must be in (0, 1)")
	}
	if cfg.MissingRate < 0 || cfg.MissingRate >= 1 {
		return fmt.Errorf("missing rate must be in [0, 1)")
	}
	if len(cfg.Foods) == 0 {
		return fmt.Errorf("at least one food is required")
	}
	for _, f := range cfg.Foods {
		if f.Name == "" || f.Name == cfg.OutcomeColumn {
			return fmt.Errorf("invalid food name %q", f.Name)
		}
		if f.PCase <= 0 || f.PCase >= 1 || f.PControl <= 0 || f.PControl >= 1 {
			return fmt.Errorf("food %s: probabilities must be in (0, 1)", f.Name)
		}
	}
	return nil
}

// Generate draws a reproducible dataset for cfg
func Generate(cfg Config) (*Dataset, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	headers := []string{cfg.OutcomeColumn}
	for _, f := range cfg.Foods {
		headers = append(headers, f.Name)
	}

	rows := make([][]string, cfg.Rows)
	cases := make([]bool, cfg.Rows)
	for i := 0; i < cfg.Rows; i++ {
		isCase := rng.Float64() < cfg.CaseFraction
		cases[i] = isCase

		r := make([]string, 0, len(headers))
		if isCase {
			r = append(r, association.LabelCase)
		} else {
			r = append(r, association.LabelControl)
		}

		for _, f := range cfg.Foods {
			p := f.PControl
			if isCase {
				p = f.PCase
			}
			switch {
			case cfg.MissingRate > 0 && rng.Float64() < cfg.MissingRate:
				r = append(r, "")
			case rng.Float64() < p:
				r = append(r, association.LabelEat)
			default:
				r = append(r, association.LabelNotEat)
			}
		}
		rows[i] = r
	}

	return &Dataset{Headers: headers, Rows: rows, Cases: cases}, nil
}

func WriteCSV(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ds.Headers); err != nil {
		return err
	}
	if err := w.WriteAll(ds.Rows); err != nil {
		return err
	}
	return f.Close()
}

func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &ds.Headers); err != nil {
		return err
	}
	for r, row := range ds.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
