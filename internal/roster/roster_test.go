package roster

import (
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

func newTestRoster(t *testing.T, rows [][]any) *Roster {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	if err := workbook.Create(path, []workbook.SheetSeed{
		{Name: Sheet, Header: Header, Rows: rows},
	}); err != nil {
		t.Fatalf("newTestRoster: %v", err)
	}
	return New(workbook.New(path, 0))
}

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcryptHash: %v", err)
	}
	return string(h)
}

func TestLookupNormalizesIdentifier(t *testing.T) {
	r := newTestRoster(t, [][]any{
		{"202401", "Alice", "", false, true, true, true},
	})

	tests := []struct {
		name string
		id   string
	}{
		{"exact", "202401"},
		{"leading space", "  202401"},
		{"trailing space", "202401  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Lookup(tt.id)
			if err != nil {
				t.Fatalf("Lookup(%q): %v", tt.id, err)
			}
			if s.DisplayName != "Alice" {
				t.Errorf("expected Alice, got %q", s.DisplayName)
			}
		})
	}

	if _, err := r.Lookup("999999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Lookup(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	hash := bcryptHash(t, "hunter2")
	r := newTestRoster(t, [][]any{
		{"1", "NoPassword", "", false, false, false, false},
		{"2", "Optional", "secret", false, false, false, false},
		{"3", "Gated", "secret", true, false, false, false},
		{"4", "Hashed", hash, true, false, false, false},
		{"5", "FlagNoValue", "", true, false, false, false},
	})

	tests := []struct {
		name     string
		id       string
		password string
		wantErr  error
	}{
		{"no requirement passes empty", "1", "", nil},
		{"no requirement passes anything", "1", "whatever", nil},
		{"flag unset ignores stored password", "2", "wrong", nil},
		{"gated correct", "3", "secret", nil},
		{"gated wrong", "3", "nope", ErrWrongPassword},
		{"gated empty submission", "3", "", ErrWrongPassword},
		{"bcrypt correct", "4", "hunter2", nil},
		{"bcrypt wrong", "4", "hunter3", ErrWrongPassword},
		{"flag set but no stored password", "5", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Lookup(tt.id)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if got := r.Verify(s, tt.password); !errors.Is(got, tt.wantErr) {
				t.Errorf("Verify = %v, want %v", got, tt.wantErr)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	r := newTestRoster(t, nil)
	empty, err := r.Empty()
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	if !empty {
		t.Error("expected empty roster")
	}

	r = newTestRoster(t, [][]any{{"1", "Alice", "", false, false, false, false}})
	empty, err = r.Empty()
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	if empty {
		t.Error("expected non-empty roster")
	}

	// A store over a nonexistent file reports both.
	missing := New(workbook.New(filepath.Join(t.TempDir(), "nope.xlsx"), 0))
	empty, err = missing.Empty()
	if err == nil {
		t.Error("expected error for missing workbook")
	}
	if !empty {
		t.Error("expected unreachable roster to read as empty")
	}
}

func TestSetPreference(t *testing.T) {
	r := newTestRoster(t, [][]any{
		{"202401", "Alice", "", false, false, false, false},
	})

	if err := r.SetPreference("202401", model.PrefShowTimer, true); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}

	prefs, err := r.Preferences("202401")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if !prefs.ShowTimer {
		t.Error("expected show_timer to be set after write")
	}
	if prefs.ShowConfidence {
		t.Error("expected other flags untouched")
	}

	if err := r.SetPreference("999", model.PrefShowTimer, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := r.SetPreference("202401", model.PrefFlag("bogus"), true); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestFlagParsing(t *testing.T) {
	r := newTestRoster(t, [][]any{
		{"1", "A", "pw", "TRUE", "1", "yes", "x"},
		{"2", "B", "pw", "FALSE", "0", "no", ""},
	})

	s, err := r.Lookup("1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !s.Prefs.RequirePassword || !s.Prefs.ShowTimer || !s.Prefs.ShowConfidence || !s.Prefs.ShowAutopsy {
		t.Errorf("expected all flags set, got %+v", s.Prefs)
	}

	s, err = r.Lookup("2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if s.Prefs.RequirePassword || s.Prefs.ShowTimer || s.Prefs.ShowConfidence || s.Prefs.ShowAutopsy {
		t.Errorf("expected all flags clear, got %+v", s.Prefs)
	}
}
