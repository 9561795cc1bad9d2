package profiling

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the report as a Markdown document
func (r *Report) Markdown() string {
	var b strings.Builder

	title := r.Filename
	if title == "" {
		title = r.DatasetID.String()
	}
	fmt.Fprintf(&b, "# Descriptive statistics: %s\n\n", escape(title))

	b.WriteString("## Overview\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Rows | %d |\n", r.Overview.Rows)
	fmt.Fprintf(&b, "| Columns | %d |\n", r.Overview.Columns)
	fmt.Fprintf(&b, "| Numeric columns | %d |\n", r.Overview.NumericColumns)
	fmt.Fprintf(&b, "| Categorical columns | %d |\n", r.Overview.CategoricalColumns)
	fmt.Fprintf(&b, "| Missing cells | %d (%.1f%%) |\n", r.Overview.MissingCells, r.Overview.MissingPct)
	fmt.Fprintf(&b, "| Duplicate rows | %d |\n\n", r.Overview.DuplicateRows)

	b.WriteString("## Columns\n\n")
	for _, c := range r.Columns {
		fmt.Fprintf(&b, "### %s\n\n", escape(c.Name))
		fmt.Fprintf(&b, "*%s*: %d values, %d missing, %d distinct\n\n", c.Kind, c.Count, c.Missing, c.Distinct)

		if n := c.Numeric; n != nil {
			b.WriteString("| mean | std | min | 25% | 50% | 75% | max | skew | kurtosis | normality p |\n")
			b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
			fmt.Fprintf(&b, "| %.4g | %.4g | %.4g | %.4g | %.4g | %.4g | %.4g | %.3f | %.3f | %.4f |\n\n",
				n.Mean, n.StdDev, n.Min, n.Q25, n.Median, n.Q75, n.Max, n.Skewness, n.Kurtosis, n.NormalityP)
			continue
		}

		if len(c.Values) > 0 {
			b.WriteString("| Value | Count |\n|---|---|\n")
			for _, v := range c.Values {
				fmt.Fprintf(&b, "| %s | %d |\n", escape(displayValue(v.Value)), v.Count)
			}
			b.WriteString("\n")
		}
	}

	if len(r.Associations.Columns) > 1 {
		b.WriteString("## Associations (Cramér's V)\n\n|  |")
		for _, col := range r.Associations.Columns {
			fmt.Fprintf(&b, " %s |", escape(col))
		}
		b.WriteString("\n|---|")
		b.WriteString(strings.Repeat("---|", len(r.Associations.Columns)))
		b.WriteString("\n")
		for i, col := range r.Associations.Columns {
			fmt.Fprintf(&b, "| **%s** |", escape(col))
			for _, v := range r.Associations.Values[i] {
				if v < 0 {
					b.WriteString(" n/a |")
				} else {
					fmt.Fprintf(&b, " %.3f |", v)
				}
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// HTML renders the Markdown document to an HTML fragment
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}

func displayValue(v string) string {
	if strings.TrimSpace(v) != v {
		return fmt.Sprintf("%q", v)
	}
	return v
}

var markdownEscaper = strings.NewReplacer(
	"|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;", "#", `\#`,
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
