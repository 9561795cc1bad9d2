package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"epistat/domain/association"
	"epistat/internal/profiling"
)

func newTable(header ...interface{}) table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row(header))
	return w
}

func render(w table.Writer, markdown bool) string {
	if markdown {
		return w.RenderMarkdown() + "\n"
	}
	return w.Render() + "\n"
}

func rightAlign(w table.Writer, from, to int) {
	var cfgs []table.ColumnConfig
	for n := from; n <= to; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	w.SetColumnConfigs(cfgs)
}

// renderAnalysis prints the display table followed by the measures
func renderAnalysis(res association.Result, markdown bool) string {
	var b strings.Builder

	d := res.Table.Display()
	t := newTable(res.Exposure, d.ColumnLabels[0], d.ColumnLabels[1])
	for i, label := range d.RowLabels {
		t.AppendRow(table.Row{label, d.Counts[i][0], d.Counts[i][1]})
	}
	rightAlign(t, 2, 3)
	b.WriteString(render(t, markdown))

	m := newTable("Measure", "Value", "Note")
	m.AppendRow(table.Row{"Chi-square", res.ChiSquare.Format(4), res.ChiSquareNote})
	m.AppendRow(table.Row{"Degrees of freedom", res.DegreesOfFreedom, ""})
	m.AppendRow(table.Row{"p-value", formatP(res.PValue), ""})
	m.AppendRow(table.Row{"Odds ratio", res.OddsRatio.Format(4), res.OddsRatioNote})
	b.WriteString(render(m, markdown))

	if len(res.Table.Columns) > 2 {
		fmt.Fprintf(&b, "Observed exposure values: %s\n", quoteAll(res.Table.Columns))
	}
	return b.String()
}

// renderReport prints one row per exposure in report order
func renderReport(report *association.Report, markdown bool) string {
	t := newTable("Exposure", "Odds ratio", "Chi-square", "p-value", "Eat case/control", "Not eat case/control", "Note")
	for _, res := range report.Results {
		if res.Failed() {
			t.AppendRow(table.Row{res.Exposure, "", "", "", "", "", res.Error})
			continue
		}
		d := res.Table.Display()
		t.AppendRow(table.Row{
			res.Exposure,
			res.OddsRatio.Format(4),
			res.ChiSquare.Format(4),
			formatP(res.PValue),
			fmt.Sprintf("%d / %d", d.Counts[0][0], d.Counts[0][1]),
			fmt.Sprintf("%d / %d", d.Counts[1][0], d.Counts[1][1]),
			note(res),
		})
	}
	rightAlign(t, 2, 6)
	t.SetCaption("Outcome %q, %d exposures, %dms", report.OutcomeColumn, len(report.Results), report.RuntimeMs)
	return render(t, markdown)
}

// renderProfile prints the overview and one row per column
func renderProfile(report *profiling.Report, markdown bool) string {
	var b strings.Builder

	o := report.Overview
	fmt.Fprintf(&b, "%d rows, %d columns, %d missing cells (%.1f%%), %d duplicate rows\n",
		o.Rows, o.Columns, o.MissingCells, o.MissingPct, o.DuplicateRows)

	t := newTable("Column", "Kind", "Count", "Missing", "Distinct", "Top", "Mean", "Std")
	for _, c := range report.Columns {
		mean, std := "", ""
		if c.Numeric != nil {
			mean = fmt.Sprintf("%.4g", c.Numeric.Mean)
			std = fmt.Sprintf("%.4g", c.Numeric.StdDev)
		}
		top := ""
		if c.TopFreq > 0 {
			top = fmt.Sprintf("%s (%d)", displayValue(c.Top), c.TopFreq)
		}
		t.AppendRow(table.Row{c.Name, c.Kind, c.Count, c.Missing, c.Distinct, top, mean, std})
	}
	rightAlign(t, 3, 5)
	b.WriteString(render(t, markdown))
	return b.String()
}

func formatP(p association.Measure) string {
	if p.Defined && p.Value < 1e-4 {
		return "< 0.0001"
	}
	return p.Format(4)
}

func note(res association.Result) string {
	var notes []string
	if res.ChiSquareNote != "" {
		notes = append(notes, "chi-square: "+res.ChiSquareNote)
	}
	if res.OddsRatioNote != "" {
		notes = append(notes, "odds ratio: "+res.OddsRatioNote)
	}
	return strings.Join(notes, "; ")
}

func displayValue(v string) string {
	if v == "" {
		return "(empty)"
	}
	return v
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
