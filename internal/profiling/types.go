package profiling

import (
	"time"

	"epistat/domain/core"
)

// Column kinds
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
	KindEmpty       = "empty"
)

// Report is the descriptive-statistics artifact for one dataset
type Report struct {
	DatasetID    core.DatasetID    `json:"dataset_id"`
	Filename     string            `json:"filename"`
	Overview     Overview          `json:"overview"`
	Columns      []ColumnProfile   `json:"columns"`
	Associations AssociationMatrix `json:"associations"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// Overview summarises the whole table
type Overview struct {
	Rows               int     `json:"rows"`
	Columns            int     `json:"columns"`
	MissingCells       int     `json:"missing_cells"`
	MissingPct         float64 `json:"missing_pct"`
	DuplicateRows      int     `json:"duplicate_rows"`
	NumericColumns     int     `json:"numeric_columns"`
	CategoricalColumns int     `json:"categorical_columns"`
}

// ValueCount is one category and how often it occurs
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnProfile describes one column. Empty cells count as missing.
type ColumnProfile struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Count    int             `json:"count"`
	Missing  int             `json:"missing"`
	Distinct int             `json:"distinct"`
	Top      string          `json:"top,omitempty"`
	TopFreq  int             `json:"top_freq,omitempty"`
	Values   []ValueCount    `json:"values,omitempty"`
	Numeric  *NumericSummary `json:"numeric,omitempty"`
}

// NumericSummary holds the describe()-style statistics of a numeric column
type NumericSummary struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std"`
	Min        float64 `json:"min"`
	Q25        float64 `json:"q25"`
	Median     float64 `json:"median"`
	Q75        float64 `json:"q75"`
	Max        float64 `json:"max"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"` // excess
	NormalityP float64 `json:"normality_p"`
	IsNormal   bool    `json:"is_normal"`
	Outliers   int     `json:"outliers"`
}

// AssociationMatrix holds pairwise Cramér's V between categorical columns.
// Values[i][j] is NaN-free; pairs that cannot be computed are left at -1.
type AssociationMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Column returns the profile for name
func (r *Report) Column(name string) (ColumnProfile, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}
