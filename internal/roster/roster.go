// Package roster is the identity table: matriculation lookup for login and
// the per-student preference flags.
package roster

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

// Sheet is the identity table's sheet name.
const Sheet = "Students"

// Header is the identity table's column layout. Preference flags are bound
// to fixed column positions via flagColumns below; the header names are for
// humans editing the workbook.
var Header = []string{"student_id", "name", "password", "require_password", "show_timer", "show_confidence", "show_autopsy"}

// One-based column positions. Preference writes address a fixed cell per
// flag, so the schema is explicit rather than derived from the header row.
const (
	colStudentID = 1
	colName      = 2
	colPassword  = 3
)

var flagColumns = map[model.PrefFlag]int{
	model.PrefRequirePassword: 4,
	model.PrefShowTimer:       5,
	model.PrefShowConfidence:  6,
	model.PrefShowAutopsy:     7,
}

var (
	// ErrNotFound means the identifier has no roster row.
	ErrNotFound = errors.New("identifier not found")
	// ErrWrongPassword means the submitted password did not match.
	ErrWrongPassword = errors.New("incorrect password")
)

// Roster reads and writes the identity sheet through the workbook store.
type Roster struct {
	store *workbook.Store
}

// New creates a roster over the given store.
func New(store *workbook.Store) *Roster {
	return &Roster{store: store}
}

// Lookup finds a student by string-normalized identifier. A missing or
// unreadable identity sheet is reported as-is so the caller can fall back
// to test mode.
func (r *Roster) Lookup(id string) (*model.Student, error) {
	t, err := r.store.ReadTable(Sheet)
	if err != nil {
		return nil, err
	}
	row := findRow(t, id)
	if row < 0 {
		return nil, ErrNotFound
	}
	s := studentFromRow(t, row)
	return &s, nil
}

// Empty reports whether the identity sheet has no student rows. Both an
// empty and an unreachable roster unlock the test-mode escape hatch; the
// error distinguishes them for logging.
func (r *Roster) Empty() (bool, error) {
	t, err := r.store.ReadTable(Sheet)
	if err != nil {
		return true, err
	}
	return len(t.Rows) == 0, nil
}

// Verify checks a submitted password against the stored one. Students with
// require_password unset pass regardless of the submitted value. Stored
// passwords are compared as plain strings, except values carrying a bcrypt
// prefix which are compared as hashes.
func (r *Roster) Verify(s *model.Student, password string) error {
	if !s.Prefs.RequirePassword {
		return nil
	}
	stored := strings.TrimSpace(s.Password)
	if strings.HasPrefix(stored, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) != nil {
			return ErrWrongPassword
		}
		return nil
	}
	if password != stored {
		return ErrWrongPassword
	}
	return nil
}

// SetPreference writes one flag to the student's fixed cell. The caller's
// in-session snapshot must only be advanced after this returns nil.
func (r *Roster) SetPreference(id string, flag model.PrefFlag, value bool) error {
	col, ok := flagColumns[flag]
	if !ok {
		return fmt.Errorf("unknown preference flag %q", flag)
	}

	t, err := r.store.ReadTable(Sheet)
	if err != nil {
		return err
	}
	row := findRow(t, id)
	if row < 0 {
		return ErrNotFound
	}

	// +2: one for the header row, one for one-based sheet coordinates.
	if err := r.store.UpdateCell(Sheet, col, row+2, formatBool(value)); err != nil {
		return err
	}
	slog.Info("preference updated", "student", id, "flag", flag, "value", value)
	return nil
}

// Preferences re-reads the student's current flag set from the store.
func (r *Roster) Preferences(id string) (model.Preferences, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return model.Preferences{}, err
	}
	return s.Prefs, nil
}

func findRow(t workbook.Table, id string) int {
	want := normalize(id)
	for i := range t.Rows {
		if normalize(t.Cell(i, colStudentID-1)) == want {
			return i
		}
	}
	return -1
}

func studentFromRow(t workbook.Table, row int) model.Student {
	s := model.Student{
		ID:          strings.TrimSpace(t.Cell(row, colStudentID-1)),
		DisplayName: strings.TrimSpace(t.Cell(row, colName-1)),
		Password:    strings.TrimSpace(t.Cell(row, colPassword-1)),
	}
	for flag, col := range flagColumns {
		s.Prefs.SetFlag(flag, parseBool(t.Cell(row, col-1)))
	}
	// A student without a stored password cannot be password-gated even if
	// the flag cell says otherwise.
	if s.Password == "" {
		s.Prefs.RequirePassword = false
	}
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "x":
		return true
	}
	return false
}

func formatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
