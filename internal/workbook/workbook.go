// Package workbook adapts an xlsx spreadsheet workbook as a tabular store:
// each named sheet is a table whose first row is the header. The portal
// treats the workbook the way it would treat a hosted spreadsheet — reads
// may be served from a short-lived cache, writes go straight through.
package workbook

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrSheetMissing is returned when the requested sheet does not exist in
// the workbook. Callers degrade to an empty result and a visible message.
var ErrSheetMissing = errors.New("sheet missing")

// Table is an in-memory snapshot of one sheet.
type Table struct {
	Header []string
	Rows   [][]string // data rows in sheet order, header excluded
}

// Column returns the zero-based index of a header column, or -1 when the
// column is absent from the sheet.
func (t Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, col), both zero-based over data rows.
// Ragged rows read as empty cells.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

type cacheEntry struct {
	table   Table
	fetched time.Time
}

// Store reads and writes sheets of a single workbook file. All access is
// serialized: xlsx files are not safe for concurrent mutation, and the
// target scale is a single classroom.
type Store struct {
	path string
	ttl  time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a store over the workbook at path. Reads are cached for ttl;
// ttl <= 0 disables caching. The file is not touched until first use.
func New(path string, ttl time.Duration) *Store {
	return &Store{
		path:  path,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// ReadTable returns the named sheet as a table. Results may be up to the
// freshness window old; writes through this store invalidate the cache for
// the affected sheet.
func (s *Store) ReadTable(name string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.cache[name]; ok && s.ttl > 0 && time.Since(e.fetched) < s.ttl {
		return e.table, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return Table{}, fmt.Errorf("sheet %s: %w", name, err)
	}
	if idx < 0 {
		return Table{}, fmt.Errorf("sheet %s: %w", name, ErrSheetMissing)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %s: %w", name, err)
	}

	var t Table
	if len(rows) > 0 {
		t.Header = rows[0]
		t.Rows = rows[1:]
	}
	if s.ttl > 0 {
		s.cache[name] = cacheEntry{table: t, fetched: time.Now()}
	}
	return t, nil
}

// UpdateCell writes a single cell. col and row are one-based sheet
// coordinates (row includes the header row). The write goes directly to
// the file; there is no retry and no transaction.
func (s *Store) UpdateCell(sheet string, col, row int, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	if idx < 0 {
		return fmt.Errorf("sheet %s: %w", sheet, ErrSheetMissing)
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	delete(s.cache, sheet)
	return nil
}

// AppendRow appends one row to the named sheet. A missing sheet is created
// with the given header first (the response log does not exist until the
// first attempt is recorded).
func (s *Store) AppendRow(sheet string, header []string, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	next := 1
	if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		head := make([]any, len(header))
		for i, h := range header {
			head[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
			return fmt.Errorf("write header %s: %w", sheet, err)
		}
		next = 2
	} else {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		next = len(rows) + 1
	}

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return fmt.Errorf("row %d: %w", next, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	delete(s.cache, sheet)
	return nil
}

// Invalidate drops the cached snapshot of a sheet so the next read goes to
// the file.
func (s *Store) Invalidate(sheet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, sheet)
}

// SheetSeed describes one sheet to create in a fresh workbook.
type SheetSeed struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Create writes a new workbook at path containing the given sheets.
// An existing file is overwritten.
func Create(path string, sheets []SheetSeed) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			// Reuse the default sheet so the workbook has no stray tab.
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return fmt.Errorf("rename default sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sh.Name); err != nil {
				return fmt.Errorf("create sheet %s: %w", sh.Name, err)
			}
		}
		head := make([]any, len(sh.Header))
		for j, h := range sh.Header {
			head[j] = h
		}
		if err := f.SetSheetRow(sh.Name, "A1", &head); err != nil {
			return fmt.Errorf("write header %s: %w", sh.Name, err)
		}
		for j, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return fmt.Errorf("row %d: %w", j+2, err)
			}
			r := row
			if err := f.SetSheetRow(sh.Name, cell, &r); err != nil {
				return fmt.Errorf("write row %s!%d: %w", sh.Name, j+2, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
