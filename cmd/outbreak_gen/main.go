package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"epistat/internal/outbreak"
)

func main() {
	out := flag.String("out", "outbreak.csv", "output file path")
	rows := flag.Int("rows", 200, "number of respondents")
	format := flag.String("format", "", "output format: xlsx or csv (default inferred from -out)")
	seed := flag.Int64("seed", 42, "RNG seed (deterministic)")
	missing := flag.Float64("missing", 0, "fraction of exposure cells left blank")
	flag.Parse()

	fmtName := strings.ToLower(strings.TrimSpace(*format))
	if fmtName == "" {
		switch strings.ToLower(filepath.Ext(*out)) {
		case ".xlsx":
			fmtName = "xlsx"
		default:
			fmtName = "csv"
		}
	}

	cfg := outbreak.DefaultConfig()
	cfg.Rows = *rows
	cfg.Seed = *seed
	cfg.MissingRate = *missing

	ds, err := outbreak.Generate(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error generating dataset:", err)
		os.Exit(2)
	}

	switch fmtName {
	case "csv":
		err = outbreak.WriteCSV(*out, ds)
	case "xlsx":
		err = outbreak.WriteXLSX(*out, ds)
	default:
		fmt.Fprintln(os.Stderr, "unknown -format:", fmtName)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", fmtName, err)
		os.Exit(1)
	}

	for _, f := range cfg.Foods {
		fmt.Printf("%s: population odds ratio %.2f\n", f.Name, f.OddsRatio())
	}
	fmt.Printf("Wrote %d rows x %d columns to %s\n", len(ds.Rows), len(ds.Headers), *out)
}
