// Package dataset loads the inventory table and exposes it to the tabular
// agent through a read-only SQLite sandbox.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/inventory-assistant/server/internal/agent/model"
	"github.com/inventory-assistant/server/internal/core"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

const DefaultTableName = "inventory"

var ErrEmptyDataset = errors.New("dataset has no header row")

// Table is an in-memory copy of the dataset. The first row of the source
// file becomes Columns; every later row is padded or cut to len(Columns).
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Loader reads the dataset for the configured runtime.
type Loader interface {
	Load(ctx context.Context) (*Table, error)
}

// FileLoader picks the source path from the runtime indicator and reads it
// on every call, so edits to the file are visible without a restart.
type FileLoader struct {
	cfg model.DatasetConfig
}

func NewFileLoader(cfg model.DatasetConfig) *FileLoader {
	if cfg.Table == "" {
		cfg.Table = DefaultTableName
	}
	return &FileLoader{cfg: cfg}
}

// Path resolves the dataset path. An unknown runtime yields an error
// matching errx.ErrUnknownRuntime.
func (l *FileLoader) Path() (string, error) {
	rt, err := core.ParseRuntime(l.cfg.Runtime)
	if err != nil {
		return "", err
	}
	switch rt {
	case core.RuntimeHosted:
		return l.cfg.HostedPath, nil
	default:
		return l.cfg.LocalPath, nil
	}
}

func (l *FileLoader) Load(ctx context.Context) (*Table, error) {
	path, err := l.Path()
	if err != nil {
		logx.Error().Err(err).Str("runtime", l.cfg.Runtime).Msg("cannot resolve dataset path")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	default:
		rows, err = readWorkbook(path, l.cfg.Sheet)
	}
	if err != nil {
		return nil, err
	}

	t, err := newTable(l.cfg.Table, rows)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	logx.Debug().Str("path", path).Int("rows", len(t.Rows)).Int("columns", len(t.Columns)).Msg("dataset loaded")
	return t, nil
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return rows, nil
}

func newTable(name string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	cols := uniqueColumns(rows[0])
	if len(cols) == 0 {
		return nil, ErrEmptyDataset
	}

	t := &Table{Name: name, Columns: cols, Rows: make([][]string, 0, len(rows)-1)}
	for _, r := range rows[1:] {
		if isBlank(r) {
			continue
		}
		row := make([]string, len(cols))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// uniqueColumns trims header cells, names empty ones and suffixes duplicates.
func uniqueColumns(header []string) []string {
	// trailing empty header cells are spreadsheet noise
	end := len(header)
	for end > 0 && strings.TrimSpace(header[end-1]) == "" {
		end--
	}

	seen := make(map[string]int, end)
	cols := make([]string, 0, end)
	for i, h := range header[:end] {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[strings.ToLower(name)]; n > 0 {
			seen[strings.ToLower(name)] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[strings.ToLower(name)] = 1
		}
		cols = append(cols, name)
	}
	return cols
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
