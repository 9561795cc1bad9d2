// Package association holds the typed records of a case-control association
// analysis: outcome and exposure categories, the contingency table they are
// tabulated into, and the measures derived from it.
package association

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"epistat/domain/core"
)

// Category labels. Matching is exact and case-sensitive.
const (
	LabelCase    = "Case"
	LabelControl = "Control"
	LabelEat     = "eat"
	LabelNotEat  = "not eat"
)

// OutcomeKind classifies a raw outcome value
type OutcomeKind int

const (
	OutcomeOther OutcomeKind = iota
	OutcomeCase
	OutcomeControl
)

// Outcome is a parsed outcome cell. Label keeps the raw value so that
// unrecognised values still tabulate into their own category.
type Outcome struct {
	Kind  OutcomeKind
	Label string
}

// ParseOutcome classifies a raw outcome value without normalising it
func ParseOutcome(raw string) Outcome {
	switch raw {
	case LabelCase:
		return Outcome{Kind: OutcomeCase, Label: raw}
	case LabelControl:
		return Outcome{Kind: OutcomeControl, Label: raw}
	default:
		return Outcome{Kind: OutcomeOther, Label: raw}
	}
}

// ExposureKind classifies a raw exposure value
type ExposureKind int

const (
	ExposureOther ExposureKind = iota
	ExposureEat
	ExposureNotEat
)

// Exposure is a parsed exposure cell; see Outcome.
type Exposure struct {
	Kind  ExposureKind
	Label string
}

// ParseExposure classifies a raw exposure value without normalising it
func ParseExposure(raw string) Exposure {
	switch raw {
	case LabelEat:
		return Exposure{Kind: ExposureEat, Label: raw}
	case LabelNotEat:
		return Exposure{Kind: ExposureNotEat, Label: raw}
	default:
		return Exposure{Kind: ExposureOther, Label: raw}
	}
}

// Cell addresses one count of a contingency table by category labels
type Cell struct {
	Outcome  string
	Exposure string
}

// ContingencyTable is the cross-tabulation of outcome (rows) by exposure (columns).
// Categories are whatever labels were observed, sorted lexically.
type ContingencyTable struct {
	Rows    []string
	Columns []string
	Counts  map[Cell]int
}

// Tabulate counts (outcome, exposure) pairs. The slices must be the same length.
func Tabulate(outcomes, exposures []string) (ContingencyTable, error) {
	if len(outcomes) != len(exposures) {
		return ContingencyTable{}, fmt.Errorf("tabulate: %d outcome values but %d exposure values", len(outcomes), len(exposures))
	}

	counts := make(map[Cell]int)
	rowSet := make(map[string]struct{})
	colSet := make(map[string]struct{})
	for i := range outcomes {
		o := ParseOutcome(outcomes[i])
		e := ParseExposure(exposures[i])
		counts[Cell{Outcome: o.Label, Exposure: e.Label}]++
		rowSet[o.Label] = struct{}{}
		colSet[e.Label] = struct{}{}
	}

	return ContingencyTable{
		Rows:    sortedKeys(rowSet),
		Columns: sortedKeys(colSet),
		Counts:  counts,
	}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the count for a cell; unobserved cells are zero.
func (t ContingencyTable) Count(outcome, exposure string) int {
	return t.Counts[Cell{Outcome: outcome, Exposure: exposure}]
}

// KindCount sums the cells whose outcome and exposure labels parse to the given kinds.
func (t ContingencyTable) KindCount(outcome OutcomeKind, exposure ExposureKind) int {
	n := 0
	for cell, c := range t.Counts {
		if ParseOutcome(cell.Outcome).Kind == outcome && ParseExposure(cell.Exposure).Kind == exposure {
			n += c
		}
	}
	return n
}

// HasRow reports whether the outcome label was observed
func (t ContingencyTable) HasRow(label string) bool {
	return contains(t.Rows, label)
}

// HasColumn reports whether the exposure label was observed
func (t ContingencyTable) HasColumn(label string) bool {
	return contains(t.Columns, label)
}

func contains(labels []string, label string) bool {
	i := sort.SearchStrings(labels, label)
	return i < len(labels) && labels[i] == label
}

// HasCaseAndControl reports whether both outcome classes are present
func (t ContingencyTable) HasCaseAndControl() bool {
	var hasCase, hasControl bool
	for _, r := range t.Rows {
		switch ParseOutcome(r).Kind {
		case OutcomeCase:
			hasCase = true
		case OutcomeControl:
			hasControl = true
		}
	}
	return hasCase && hasControl
}

// HasExposureLevels reports whether either eat or not eat was observed
func (t ContingencyTable) HasExposureLevels() bool {
	for _, c := range t.Columns {
		if ParseExposure(c).Kind != ExposureOther {
			return true
		}
	}
	return false
}

// Matrix returns counts in Rows x Columns order
func (t ContingencyTable) Matrix() [][]int {
	m := make([][]int, len(t.Rows))
	for i, r := range t.Rows {
		m[i] = make([]int, len(t.Columns))
		for j, c := range t.Columns {
			m[i][j] = t.Count(r, c)
		}
	}
	return m
}

// Total returns the number of tabulated observations
func (t ContingencyTable) Total() int {
	n := 0
	for _, c := range t.Counts {
		n += c
	}
	return n
}

// Fingerprint hashes the counts so identical tabulations compare equal.
func (t ContingencyTable) Fingerprint() core.Hash {
	flat := make(map[string]int, len(t.Counts))
	for cell, n := range t.Counts {
		flat[strconv.Quote(cell.Outcome)+"|"+strconv.Quote(cell.Exposure)] = n
	}
	return core.ComputeCountsHash(flat)
}

type tableJSON struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Counts  [][]int  `json:"counts"`
}

// MarshalJSON encodes the table as labelled rows of counts
func (t ContingencyTable) MarshalJSON() ([]byte, error) {
	rows, cols := t.Rows, t.Columns
	if rows == nil {
		rows = []string{}
	}
	if cols == nil {
		cols = []string{}
	}
	return json.Marshal(tableJSON{Rows: rows, Columns: cols, Counts: t.Matrix()})
}

// UnmarshalJSON decodes the labelled-matrix form written by MarshalJSON
func (t *ContingencyTable) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Counts) != len(raw.Rows) {
		return fmt.Errorf("contingency table: %d rows but %d count rows", len(raw.Rows), len(raw.Counts))
	}
	counts := make(map[Cell]int)
	for i, r := range raw.Rows {
		if len(raw.Counts[i]) != len(raw.Columns) {
			return fmt.Errorf("contingency table: row %q has %d counts, want %d", r, len(raw.Counts[i]), len(raw.Columns))
		}
		for j, c := range raw.Columns {
			if n := raw.Counts[i][j]; n != 0 {
				counts[Cell{Outcome: r, Exposure: c}] = n
			}
		}
	}
	t.Rows, t.Columns, t.Counts = raw.Rows, raw.Columns, counts
	return nil
}

// DisplayTable is the presentation form of a 2x2 table: exposure on the rows,
// outcome on the columns.
type DisplayTable struct {
	RowLabels    [2]string
	ColumnLabels [2]string
	Counts       [2][2]int
}

// Display transposes the eat / not eat by Case / Control sub-table and relabels it.
// Cells that were never observed show as zero.
func (t ContingencyTable) Display() DisplayTable {
	return DisplayTable{
		RowLabels:    [2]string{"Eat", "Not Eat"},
		ColumnLabels: [2]string{"Case", "Control"},
		Counts: [2][2]int{
			{t.KindCount(OutcomeCase, ExposureEat), t.KindCount(OutcomeControl, ExposureEat)},
			{t.KindCount(OutcomeCase, ExposureNotEat), t.KindCount(OutcomeControl, ExposureNotEat)},
		},
	}
}

// Measure is a derived value that may be undefined.
type Measure struct {
	Value   float64
	Defined bool
}

// Undefined is the zero Measure
var Undefined = Measure{}

// Defined wraps a computed value. Non-finite values are undefined.
func Defined(v float64) Measure {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Measure{Value: v, Defined: true}
}

// Format renders the value with prec decimals, or "undefined"
func (m Measure) Format(prec int) string {
	if !m.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(m.Value, 'f', prec, 64)
}

func (m Measure) String() string {
	return m.Format(4)
}

// MarshalJSON writes null for undefined measures
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON reads null as undefined
func (m *Measure) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Defined(v)
	return nil
}

// Result is one exposure's association with the outcome.
type Result struct {
	Exposure         string           `json:"exposure"`
	OutcomeColumn    string           `json:"outcome_column"`
	OddsRatio        Measure          `json:"odds_ratio"`
	ChiSquare        Measure          `json:"chi_square"`
	PValue           Measure          `json:"p_value"`
	DegreesOfFreedom int              `json:"degrees_of_freedom"`
	Table            ContingencyTable `json:"contingency_table"`

	// Reasons a measure is undefined. Empty when the measure is defined.
	OddsRatioNote string `json:"odds_ratio_note,omitempty"`
	ChiSquareNote string `json:"chi_square_note,omitempty"`

	// Error is set when the exposure could not be analysed at all.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the exposure could not be analysed
func (r Result) Failed() bool {
	return r.Error != ""
}

// Significant reports p < alpha; undefined p-values are never significant
func (r Result) Significant(alpha float64) bool {
	return r.PValue.Defined && r.PValue.Value < alpha
}

// Report is the batch of results for one dataset, in the requested exposure order.
type Report struct {
	ID            core.ReportID  `json:"id"`
	DatasetID     core.DatasetID `json:"dataset_id"`
	OutcomeColumn string         `json:"outcome_column"`
	Exposures     []string       `json:"exposures"`
	Results       []Result       `json:"results"`
	CreatedAt     time.Time      `json:"created_at"`
	RuntimeMs     int64          `json:"runtime_ms"`
}

// Lookup returns the result for an exposure
func (r *Report) Lookup(exposure string) (Result, bool) {
	for _, res := range r.Results {
		if res.Exposure == exposure {
			return res, true
		}
	}
	return Result{}, false
}
