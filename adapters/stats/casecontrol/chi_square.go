package casecontrol

import (
	"fmt"
	"math"

	"epistat/domain/core"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSquareResult is the outcome of a chi-square test of independence
type ChiSquareResult struct {
	Statistic        float64
	PValue           float64
	DegreesOfFreedom int
	Expected         [][]float64
	Corrected        bool // Yates' continuity correction was applied
}

// ChiSquareTest runs a chi-square test of independence on an r x c table of
// observed counts. With correction set and one degree of freedom, each
// observed count is moved up to 0.5 toward its expected count (Yates).
// A table with zero degrees of freedom yields statistic 0 and p-value 1.
func ChiSquareTest(observed [][]int, correction bool) (ChiSquareResult, error) {
	rows := len(observed)
	if rows == 0 || len(observed[0]) == 0 {
		return ChiSquareResult{}, fmt.Errorf("%w: empty table", core.ErrChiSquareUndefined)
	}
	cols := len(observed[0])

	rowTotals := make([]float64, rows)
	colTotals := make([]float64, cols)
	total := 0.0
	for i := range observed {
		if len(observed[i]) != cols {
			return ChiSquareResult{}, fmt.Errorf("chi-square: row %d has %d cells, want %d", i, len(observed[i]), cols)
		}
		for j, n := range observed[i] {
			if n < 0 {
				return ChiSquareResult{}, fmt.Errorf("chi-square: negative count %d at (%d,%d)", n, i, j)
			}
			rowTotals[i] += float64(n)
			colTotals[j] += float64(n)
			total += float64(n)
		}
	}

	expected := make([][]float64, rows)
	obsFlat := make([]float64, 0, rows*cols)
	expFlat := make([]float64, 0, rows*cols)
	for i := range observed {
		expected[i] = make([]float64, cols)
		for j, n := range observed[i] {
			e := 0.0
			if total > 0 {
				e = rowTotals[i] * colTotals[j] / total
			}
			if e == 0 {
				return ChiSquareResult{}, fmt.Errorf("%w: cell (%d,%d)", core.ErrChiSquareUndefined, i, j)
			}
			expected[i][j] = e
			obsFlat = append(obsFlat, float64(n))
			expFlat = append(expFlat, e)
		}
	}

	dof := (rows - 1) * (cols - 1)
	if dof == 0 {
		return ChiSquareResult{Statistic: 0, PValue: 1, Expected: expected}, nil
	}

	corrected := false
	if correction && dof == 1 {
		for k := range obsFlat {
			diff := expFlat[k] - obsFlat[k]
			obsFlat[k] += math.Copysign(math.Min(0.5, math.Abs(diff)), diff)
		}
		corrected = true
	}

	statistic := stat.ChiSquare(obsFlat, expFlat)
	pValue := distuv.ChiSquared{K: float64(dof)}.Survival(statistic)

	return ChiSquareResult{
		Statistic:        statistic,
		PValue:           pValue,
		DegreesOfFreedom: dof,
		Expected:         expected,
		Corrected:        corrected,
	}, nil
}

// CramersV is the chi-square effect size sqrt(chi2 / (n * min(r-1, c-1))),
// computed without continuity correction. Tables with a single row or column give 0.
func CramersV(observed [][]int) (float64, error) {
	res, err := ChiSquareTest(observed, false)
	if err != nil {
		return 0, err
	}
	rows, cols := len(observed), len(observed[0])
	minDim := math.Min(float64(rows-1), float64(cols-1))
	if minDim == 0 {
		return 0, nil
	}
	n := 0
	for _, row := range observed {
		for _, c := range row {
			n += c
		}
	}
	return math.Sqrt(res.Statistic / (float64(n) * minDim)), nil
}
