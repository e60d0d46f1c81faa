package workbook

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.xlsx")
	sheets := []SheetSeed{
		{
			Name:   "Students",
			Header: []string{"student_id", "name", "password"},
			Rows: [][]any{
				{"202401", "Alice", ""},
				{"202402", "Bruno", "secret"},
			},
		},
		{
			Name:   "Questions",
			Header: []string{"id", "statement"},
			Rows:   [][]any{{"Q1", "What is 2 + 2?"}},
		},
	}
	if err := Create(path, sheets); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return New(path, ttl)
}

func TestReadTable(t *testing.T) {
	s := newTestStore(t, 0)

	tab, err := s.ReadTable("Students")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tab.Rows))
	}
	if got := tab.Column("name"); got != 1 {
		t.Errorf("expected name column 1, got %d", got)
	}
	if got := tab.Column("missing"); got != -1 {
		t.Errorf("expected -1 for missing column, got %d", got)
	}
	if got := tab.Cell(0, 1); got != "Alice" {
		t.Errorf("expected Alice, got %q", got)
	}
	// Out-of-range reads yield the empty string.
	if got := tab.Cell(5, 0); got != "" {
		t.Errorf("expected empty cell, got %q", got)
	}
}

func TestReadTableMissingSheet(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.ReadTable("Responses")
	if !errors.Is(err, ErrSheetMissing) {
		t.Fatalf("expected ErrSheetMissing, got %v", err)
	}
}

func TestUpdateCellInvalidatesCache(t *testing.T) {
	// A long TTL so only the explicit invalidation can refresh the read.
	s := newTestStore(t, time.Hour)

	tab, err := s.ReadTable("Students")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if got := tab.Cell(0, 1); got != "Alice" {
		t.Fatalf("expected Alice, got %q", got)
	}

	if err := s.UpdateCell("Students", 2, 2, "Alicia"); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}

	tab, err = s.ReadTable("Students")
	if err != nil {
		t.Fatalf("ReadTable after update: %v", err)
	}
	if got := tab.Cell(0, 1); got != "Alicia" {
		t.Errorf("expected Alicia after update, got %q", got)
	}
}

func TestCacheServesStaleReads(t *testing.T) {
	s := newTestStore(t, time.Hour)

	if _, err := s.ReadTable("Questions"); err != nil {
		t.Fatalf("ReadTable: %v", err)
	}

	// Write through a second store handle so the first one's cache
	// never hears about it.
	other := New(s.path, 0)
	if err := other.UpdateCell("Questions", 2, 2, "changed"); err != nil {
		t.Fatalf("UpdateCell: %v", err)
	}

	tab, err := s.ReadTable("Questions")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if got := tab.Cell(0, 1); got != "What is 2 + 2?" {
		t.Errorf("expected cached statement, got %q", got)
	}

	s.Invalidate("Questions")
	tab, err = s.ReadTable("Questions")
	if err != nil {
		t.Fatalf("ReadTable after invalidate: %v", err)
	}
	if got := tab.Cell(0, 1); got != "changed" {
		t.Errorf("expected fresh statement, got %q", got)
	}
}

func TestAppendRowCreatesSheet(t *testing.T) {
	s := newTestStore(t, 0)

	header := []string{"record_id", "student_id"}
	if err := s.AppendRow("Responses", header, []any{"r1", "202401"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if err := s.AppendRow("Responses", header, []any{"r2", "202402"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}

	tab, err := s.ReadTable("Responses")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(tab.Header) != 2 {
		t.Fatalf("expected 2 header cells, got %d", len(tab.Header))
	}
	if len(tab.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tab.Rows))
	}
	if got := tab.Cell(1, 0); got != "r2" {
		t.Errorf("expected r2, got %q", got)
	}
}
