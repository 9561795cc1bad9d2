package dataset

import (
	"fmt"
	"time"

	"epistat/domain/core"
)

// DatasetStatus represents the processing state of a dataset
type DatasetStatus string

const (
	StatusReady  DatasetStatus = "ready"
	StatusFailed DatasetStatus = "failed"
)

// Dataset sources. Server-loaded files are shared by every session; uploads
// belong to the session that made them.
const (
	SourceFile      = "file"
	SourceUpload    = "upload"
	SourceGenerated = "generated"
)

// Row maps column name to the raw cell value as read from the source file.
type Row map[string]string

// Dataset is a rectangular table of raw string cells. Once loaded it is never mutated;
// analyses read from it and return derived values.
type Dataset struct {
	ID               core.DatasetID `json:"id"`
	OriginalFilename string         `json:"original_filename"`
	Source           string         `json:"source"` // one of the Source constants
	Status           DatasetStatus  `json:"status"`
	Headers          []string       `json:"headers"`
	Rows             []Row          `json:"rows"`
	ContentHash      core.Hash      `json:"content_hash"`
	CreatedAt        time.Time      `json:"created_at"`
}

// New builds a ready dataset with a fresh ID and a content fingerprint.
func New(filename, source string, headers []string, rows []Row) *Dataset {
	ds := &Dataset{
		ID:               core.NewDatasetID(),
		OriginalFilename: filename,
		Source:           source,
		Status:           StatusReady,
		Headers:          append([]string(nil), headers...),
		Rows:             rows,
		CreatedAt:        time.Now().UTC(),
	}
	ds.ContentHash = core.ComputeContentHash(ds.Headers, ds.Matrix())
	return ds
}

// Len returns the number of data rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether the header row declares the column
func (d *Dataset) HasColumn(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// RequireColumns fails on the first declared column that is absent.
func (d *Dataset) RequireColumns(columns ...string) error {
	for _, c := range columns {
		if !d.HasColumn(c) {
			return core.NewMissingColumnError(c)
		}
	}
	return nil
}

// Value returns the cell at row i, or "" when the row is shorter than the header.
func (d *Dataset) Value(i int, column string) string {
	return d.Rows[i][column]
}

// Column returns a copy of one column's values in row order.
func (d *Dataset) Column(name string) ([]string, error) {
	if !d.HasColumn(name) {
		return nil, core.NewMissingColumnError(name)
	}
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values, nil
}

// Matrix returns the rows as string slices in header order.
func (d *Dataset) Matrix() [][]string {
	out := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		cells := make([]string, len(d.Headers))
		for j, h := range d.Headers {
			cells[j] = row[h]
		}
		out[i] = cells
	}
	return out
}

// Page returns rows [offset, offset+limit) clamped to the dataset bounds.
func (d *Dataset) Page(offset, limit int) []Row {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(d.Rows) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(d.Rows) {
		end = len(d.Rows)
	}
	return d.Rows[offset:end]
}

// Summary describes a dataset without its rows
type Summary struct {
	ID               core.DatasetID `json:"id" db:"id"`
	OriginalFilename string         `json:"original_filename" db:"original_filename"`
	Source           string         `json:"source" db:"source"`
	RecordCount      int            `json:"record_count" db:"record_count"`
	FieldCount       int            `json:"field_count" db:"field_count"`
	ContentHash      core.Hash      `json:"content_hash" db:"content_hash"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Summarize returns the dataset's listing metadata
func (d *Dataset) Summarize() Summary {
	return Summary{
		ID:               d.ID,
		OriginalFilename: d.OriginalFilename,
		Source:           d.Source,
		RecordCount:      len(d.Rows),
		FieldCount:       len(d.Headers),
		ContentHash:      d.ContentHash,
		CreatedAt:        d.CreatedAt,
	}
}

// FromMatrix converts header-ordered cells back into rows. Extra cells beyond the
// header are dropped, short rows leave the trailing columns empty.
func FromMatrix(headers []string, cells [][]string) ([]Row, error) {
	if len(headers) == 0 {
		return nil, core.ErrNoHeaders
	}
	rows := make([]Row, len(cells))
	for i, record := range cells {
		row := make(Row, len(headers))
		for j, h := range headers {
			if j < len(record) {
				row[h] = record[j]
			} else {
				row[h] = ""
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// DuplicateHeaders returns header names that appear more than once.
func DuplicateHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	var dups []string
	for _, h := range headers {
		seen[h]++
		if seen[h] == 2 {
			dups = append(dups, h)
		}
	}
	return dups
}

// ValidateHeaders rejects an empty or ambiguous header row
func ValidateHeaders(headers []string) error {
	if len(headers) == 0 {
		return core.ErrNoHeaders
	}
	if dups := DuplicateHeaders(headers); len(dups) > 0 {
		return fmt.Errorf("duplicate column names: %v", dups)
	}
	return nil
}
