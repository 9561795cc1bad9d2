// Package casecontrol computes chi-square tests and odds ratios between a
// Case/Control outcome column and eat/not eat exposure columns.
package casecontrol

import (
	"fmt"

	"epistat/domain/association"
	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/internal"
)

// Options tunes the analysis
type Options struct {
	// YatesCorrection applies the continuity correction to tables with one degree of freedom.
	YatesCorrection bool
}

// DefaultOptions matches the usual chi-square-of-independence defaults
func DefaultOptions() Options {
	return Options{YatesCorrection: true}
}

// Analyzer builds the contingency table for one exposure and derives its measures.
// It holds no state between calls and never modifies the dataset.
type Analyzer struct {
	opts   Options
	logger *internal.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{opts: opts, logger: internal.DefaultLogger}
}

// Options returns the analyzer's configuration
func (a *Analyzer) Options() Options {
	return a.opts
}

// Analyze tabulates outcomeColumn against exposureColumn and computes the
// chi-square test on the full table and the odds ratio on its eat / not eat part.
//
// A missing column is returned as an error. Computation failures are not: they
// leave the affected measures undefined and record why in the result's notes.
func (a *Analyzer) Analyze(ds *dataset.Dataset, outcomeColumn, exposureColumn string) (association.Result, error) {
	if ds == nil {
		return association.Result{}, core.ErrEmptyDataset
	}
	if err := ds.RequireColumns(outcomeColumn, exposureColumn); err != nil {
		return association.Result{}, err
	}

	outcomes, _ := ds.Column(outcomeColumn)
	exposures, _ := ds.Column(exposureColumn)
	table, err := association.Tabulate(outcomes, exposures)
	if err != nil {
		return association.Result{}, err
	}

	return a.analyzeTable(table, outcomeColumn, exposureColumn), nil
}

func (a *Analyzer) analyzeTable(table association.ContingencyTable, outcomeColumn, exposureColumn string) association.Result {
	result := association.Result{
		Exposure:      exposureColumn,
		OutcomeColumn: outcomeColumn,
		Table:         table,
	}

	if !table.HasCaseAndControl() {
		a.logger.Debug("[Analyzer] %s: outcome categories %v lack Case or Control", exposureColumn, table.Rows)
		result.OddsRatioNote = core.ErrMissingOutcome.Error()
		result.ChiSquareNote = core.ErrMissingOutcome.Error()
		return result
	}

	if !table.HasExposureLevels() {
		a.logger.Debug("[Analyzer] %s: exposure categories %v contain neither eat nor not eat", exposureColumn, table.Columns)
		result.OddsRatioNote = core.ErrNoExposureLevels.Error()
		result.ChiSquareNote = core.ErrNoExposureLevels.Error()
		return result
	}

	chi, err := ChiSquareTest(table.Matrix(), a.opts.YatesCorrection)
	if err != nil {
		a.logger.Warn("[Analyzer] %s: chi-square failed: %v", exposureColumn, err)
		result.ChiSquareNote = noteFor(err)
	} else {
		result.ChiSquare = association.Defined(chi.Statistic)
		result.PValue = association.Defined(chi.PValue)
		result.DegreesOfFreedom = chi.DegreesOfFreedom
	}

	or, err := OddsRatio(table)
	if err != nil {
		a.logger.Debug("[Analyzer] %s: odds ratio undefined: %v", exposureColumn, err)
		result.OddsRatioNote = noteFor(err)
	} else {
		result.OddsRatio = association.Defined(or)
	}

	return result
}

// noteFor turns a computation error into the note stored on the result.
func noteFor(err error) string {
	if core.IsComputationError(err) {
		return err.Error()
	}
	return fmt.Sprintf("computation failed: %v", err)
}
