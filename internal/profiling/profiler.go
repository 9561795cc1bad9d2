package profiling

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"epistat/adapters/stats/casecontrol"
	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/internal"
)

// Config bounds the profile's size
type Config struct {
	MaxValues int // value counts kept per column
	MaxLevels int // categorical columns with more levels are left out of the association matrix
}

// DefaultConfig returns the profile limits used by the UI
func DefaultConfig() Config {
	return Config{MaxValues: 10, MaxLevels: 20}
}

// DataProfiler produces the descriptive-statistics report of a dataset
type DataProfiler struct {
	config       Config
	distribution *DistributionAnalyzer
	logger       *internal.Logger
}

// NewDataProfiler creates a new data profiler
func NewDataProfiler(config Config) *DataProfiler {
	if config.MaxValues <= 0 {
		config.MaxValues = DefaultConfig().MaxValues
	}
	if config.MaxLevels <= 1 {
		config.MaxLevels = DefaultConfig().MaxLevels
	}
	return &DataProfiler{
		config:       config,
		distribution: NewDistributionAnalyzer(),
		logger:       internal.DefaultLogger,
	}
}

// Profile analyzes all columns in a dataset
func (dp *DataProfiler) Profile(ds *dataset.Dataset) (*Report, error) {
	if ds == nil || len(ds.Headers) == 0 {
		return nil, core.ErrEmptyDataset
	}
	start := time.Now()

	report := &Report{
		DatasetID:   ds.ID,
		Filename:    ds.OriginalFilename,
		Columns:     make([]ColumnProfile, 0, len(ds.Headers)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, header := range ds.Headers {
		values, _ := ds.Column(header)
		profile := dp.profileColumn(header, values)
		report.Columns = append(report.Columns, profile)

		report.Overview.MissingCells += profile.Missing
		switch profile.Kind {
		case KindNumeric:
			report.Overview.NumericColumns++
		case KindCategorical:
			report.Overview.CategoricalColumns++
		}
	}

	report.Overview.Rows = ds.Len()
	report.Overview.Columns = len(ds.Headers)
	if cells := ds.Len() * len(ds.Headers); cells > 0 {
		report.Overview.MissingPct = 100 * float64(report.Overview.MissingCells) / float64(cells)
	}
	report.Overview.DuplicateRows = countDuplicateRows(ds)
	report.Associations = dp.associationMatrix(ds, report.Columns)

	dp.logger.Debug("[Profiler] profiled %d columns of %s in %s", len(ds.Headers), ds.ID, time.Since(start))
	return report, nil
}

func (dp *DataProfiler) profileColumn(name string, values []string) ColumnProfile {
	profile := ColumnProfile{Name: name}

	counts := make(map[string]int)
	numbers := make([]float64, 0, len(values))
	numeric := true
	for _, v := range values {
		if v == "" {
			profile.Missing++
			continue
		}
		profile.Count++
		counts[v]++
		if numeric {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				numeric = false
				continue
			}
			numbers = append(numbers, f)
		}
	}

	profile.Distinct = len(counts)
	profile.Values = topValues(counts, dp.config.MaxValues)
	if len(profile.Values) > 0 {
		profile.Top = profile.Values[0].Value
		profile.TopFreq = profile.Values[0].Count
	}

	switch {
	case profile.Count == 0:
		profile.Kind = KindEmpty
	case numeric:
		profile.Kind = KindNumeric
		summary, err := dp.distribution.Summarize(numbers)
		if err != nil {
			dp.logger.Warn("[Profiler] numeric summary of %s failed: %v", name, err)
			break
		}
		profile.Numeric = &summary
	default:
		profile.Kind = KindCategorical
	}
	return profile
}

// topValues orders by count descending, then value ascending
func topValues(counts map[string]int, limit int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func countDuplicateRows(ds *dataset.Dataset) int {
	seen := make(map[string]struct{}, ds.Len())
	dups := 0
	for _, record := range ds.Matrix() {
		key := strings.Join(record, "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// associationMatrix computes Cramér's V for every pair of categorical columns
// with between two and MaxLevels distinct values. Rows where either cell is
// empty are skipped.
func (dp *DataProfiler) associationMatrix(ds *dataset.Dataset, profiles []ColumnProfile) AssociationMatrix {
	var columns []string
	for _, p := range profiles {
		if p.Kind == KindCategorical && p.Distinct >= 2 && p.Distinct <= dp.config.MaxLevels {
			columns = append(columns, p.Name)
		}
	}

	matrix := AssociationMatrix{Columns: columns, Values: make([][]float64, len(columns))}
	for i := range columns {
		matrix.Values[i] = make([]float64, len(columns))
		matrix.Values[i][i] = 1
	}

	for i := 0; i < len(columns); i++ {
		a, _ := ds.Column(columns[i])
		for j := i + 1; j < len(columns); j++ {
			b, _ := ds.Column(columns[j])
			v := cramersV(a, b)
			matrix.Values[i][j] = v
			matrix.Values[j][i] = v
		}
	}
	return matrix
}

func cramersV(a, b []string) float64 {
	var left, right []string
	for k := range a {
		if a[k] == "" || b[k] == "" {
			continue
		}
		left = append(left, a[k])
		right = append(right, b[k])
	}
	table, err := association.Tabulate(left, right)
	if err != nil || len(table.Rows) == 0 {
		return -1
	}
	v, err := casecontrol.CramersV(table.Matrix())
	if err != nil {
		return -1
	}
	return v
}
