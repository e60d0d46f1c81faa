package grade

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/session"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

var testQuestion = model.Question{
	ID:        "Q1",
	Subject:   "Math",
	Statement: "One plus one?",
	OptionA:   "1",
	OptionB:   "2",
	OptionC:   "3",
	OptionD:   "4",
	AnswerKey: "b",
	Comment:   "Basic addition.",
}

func newTestGrader(t *testing.T) *Grader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grade.xlsx")
	if err := workbook.Create(path, []workbook.SheetSeed{
		{Name: "Questions", Header: []string{"id"}, Rows: [][]any{{"Q1"}}},
	}); err != nil {
		t.Fatalf("newTestGrader: %v", err)
	}
	return New(workbook.New(path, 0))
}

func newTestSession(t *testing.T, prefs model.Preferences) *session.Session {
	t.Helper()
	m := session.NewManager(0)
	return m.Create(model.Student{ID: "202401", DisplayName: "Alice", Prefs: prefs}, false)
}

func readLog(t *testing.T, g *Grader) []model.ResponseRecord {
	t.Helper()
	recs, err := Records(g.store)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	return recs
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		choice  string
		correct bool
	}{
		{"match", "b", true},
		{"match upper", "B", true},
		{"match padded", " b ", true},
		{"mismatch", "a", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(testQuestion, tt.choice)
			if v.Correct != tt.correct {
				t.Errorf("Correct = %v, want %v", v.Correct, tt.correct)
			}
			if v.AnswerKey != "B" {
				t.Errorf("AnswerKey = %q, want B", v.AnswerKey)
			}
		})
	}
}

func TestSubmitCorrect(t *testing.T) {
	g := newTestGrader(t)
	// Autopsy on: a correct answer must still be recorded immediately.
	sess := newTestSession(t, model.Preferences{ShowAutopsy: true})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess.MarkShown("Q1", base)
	g.now = func() time.Time { return base.Add(3 * time.Second) }

	out, err := g.Submit(sess, testQuestion, "b", model.ConfidenceHigh)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Verdict.Correct || out.PendingCause {
		t.Errorf("unexpected outcome: %+v", out)
	}

	recs := readLog(t, g)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if !rec.Correct || rec.Cause != model.CauseNA || rec.Confidence != model.ConfidenceHigh {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.ElapsedSec != 3 {
		t.Errorf("ElapsedSec = %v, want 3", rec.ElapsedSec)
	}
	if rec.StudentID != "202401" || rec.QuestionID != "Q1" {
		t.Errorf("unexpected identity fields: %+v", rec)
	}
	if rec.ID == "" {
		t.Error("expected generated record id")
	}

	// The timer restarted at grading time.
	if got := sess.Elapsed("Q1", base.Add(5*time.Second)); got != 2 {
		t.Errorf("elapsed after reset = %v, want 2", got)
	}
}

func TestSubmitIncorrectWithoutAutopsy(t *testing.T) {
	g := newTestGrader(t)
	sess := newTestSession(t, model.Preferences{})

	out, err := g.Submit(sess, testQuestion, "a", model.ConfidenceDisabled)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Verdict.Correct || out.PendingCause {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.Verdict.AnswerKey != "B" || out.Verdict.Comment != "Basic addition." {
		t.Errorf("unexpected verdict: %+v", out.Verdict)
	}

	recs := readLog(t, g)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Cause != model.CauseUnclassified {
		t.Errorf("Cause = %q, want %q", recs[0].Cause, model.CauseUnclassified)
	}
}

func TestSubmitIncorrectDefersUntilDiagnosis(t *testing.T) {
	g := newTestGrader(t)
	sess := newTestSession(t, model.Preferences{ShowAutopsy: true})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess.MarkShown("Q1", base)
	g.now = func() time.Time { return base.Add(7 * time.Second) }

	out, err := g.Submit(sess, testQuestion, "c", model.ConfidenceLow)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.PendingCause {
		t.Fatal("expected deferred record")
	}

	// Nothing written yet.
	if recs := readLog(t, g); len(recs) != 0 {
		t.Fatalf("expected empty log before diagnosis, got %d records", len(recs))
	}
	if sess.Pending("Q1") == nil {
		t.Fatal("expected pending marker")
	}

	// Unknown causes are rejected and leave the marker in place.
	if err := g.Diagnose(sess, "Q1", model.Cause("whatever")); err == nil {
		t.Error("expected error for unknown cause")
	}
	if sess.Pending("Q1") == nil {
		t.Fatal("expected pending marker to survive a rejected cause")
	}

	g.now = func() time.Time { return base.Add(30 * time.Second) }
	if err := g.Diagnose(sess, "Q1", model.CauseConceptGap); err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	recs := readLog(t, g)
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Correct || rec.Cause != model.CauseConceptGap || rec.Confidence != model.ConfidenceLow {
		t.Errorf("unexpected record: %+v", rec)
	}
	// Elapsed was fixed at grading time, not at diagnosis time.
	if rec.ElapsedSec != 7 {
		t.Errorf("ElapsedSec = %v, want 7", rec.ElapsedSec)
	}

	if sess.Pending("Q1") != nil {
		t.Error("expected pending marker cleared")
	}

	if err := g.Diagnose(sess, "Q1", model.CauseGuess); err == nil {
		t.Error("expected error when nothing is pending")
	}
}

func TestRecordsEmptyLog(t *testing.T) {
	g := newTestGrader(t)
	recs, err := Records(g.store)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if recs != nil {
		t.Errorf("expected nil for an absent log sheet, got %v", recs)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	g := newTestGrader(t)
	sess := newTestSession(t, model.Preferences{})
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return ts }

	if _, err := g.Submit(sess, testQuestion, "b", model.ConfidenceDisabled); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := g.Submit(sess, testQuestion, "d", model.ConfidenceDisabled); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	recs := readLog(t, g)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !recs[0].Correct || recs[1].Correct {
		t.Errorf("expected correct then incorrect, got %+v", recs)
	}
	if !recs[0].RecordedAt.Equal(ts) {
		t.Errorf("RecordedAt = %v, want %v", recs[0].RecordedAt, ts)
	}
}
