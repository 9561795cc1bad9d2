package excel

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"epistat/domain/core"
	"epistat/domain/dataset"
	"epistat/ports"
)

// Supported file types
const (
	FileTypeCSV  = "csv"
	FileTypeXLSX = "xlsx"
)

// DataReader handles reading Excel and CSV files into a dataset
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	source   string
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	fileType, err := DetectFileType(filePath)
	if err != nil {
		fileType = FileTypeCSV
	}
	return &DataReader{filePath: filePath, fileType: fileType, source: dataset.SourceFile}
}

// DetectFileType maps a filename extension to a supported file type
func DetectFileType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return FileTypeXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q: only .csv and .xlsx are accepted", filepath.Ext(filename))
	}
}

// ReadDataset reads the configured file into a dataset
func (r *DataReader) ReadDataset() (*dataset.Dataset, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	f, err := os.Open(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
		}
		return nil, fmt.Errorf("failed to open %s file: %w", strings.ToUpper(r.fileType), err)
	}
	defer f.Close()

	return read(f, filepath.Base(r.filePath), r.fileType, r.source)
}

// ReadFrom parses an uploaded file. The type is taken from the filename.
func ReadFrom(src io.Reader, filename string) (*dataset.Dataset, error) {
	fileType, err := DetectFileType(filename)
	if err != nil {
		return nil, err
	}
	return read(src, filename, fileType, dataset.SourceUpload)
}

// Reader adapts the package functions to ports.DatasetReader
type Reader struct{}

var _ ports.DatasetReader = Reader{}

func (Reader) ReadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	return NewDataReader(path).ReadDataset()
}

func (Reader) ReadUpload(ctx context.Context, src io.Reader, filename string) (*dataset.Dataset, error) {
	return ReadFrom(src, filename)
}

func read(src io.Reader, filename, fileType, source string) (*dataset.Dataset, error) {
	start := time.Now()

	var (
		rows [][]string
		err  error
	)
	switch fileType {
	case FileTypeCSV:
		rows, err = readCSVRows(src)
	case FileTypeXLSX:
		rows, err = readExcelRows(src)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	if err != nil {
		return nil, err
	}

	ds, err := processRows(rows, filename, source)
	if err != nil {
		return nil, err
	}

	log.Printf("[DataReader] %s file processed in %.2fms (%d columns, %d rows)",
		strings.ToUpper(fileType), float64(time.Since(start).Nanoseconds())/1e6, len(ds.Headers), ds.Len())
	return ds, nil
}

// readExcelRows reads the first sheet of a workbook
func readExcelRows(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSVRows reads every record; rows may have differing lengths
func readCSVRows(src io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows turns the header row plus records into a dataset. Header names
// are trimmed; cell values are kept exactly as read.
func processRows(rows [][]string, filename, source string) (*dataset.Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, core.ErrNoHeaders)
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}
	if err := dataset.ValidateHeaders(headers); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have at least a header row and one data row: %w", filename, core.ErrEmptyDataset)
	}

	records, err := dataset.FromMatrix(headers, rows[1:])
	if err != nil {
		return nil, err
	}
	return dataset.New(filename, source, headers, records), nil
}
