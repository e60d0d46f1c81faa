// Package grade compares submitted answers against the answer key and
// appends response records to the workbook's append-only log. A record is
// written exactly once per grading action: immediately for correct or
// non-autopsy answers, deferred until a cause is chosen otherwise.
package grade

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/session"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

// Sheet is the response log's sheet name. It is created on first write.
const Sheet = "Responses"

// Header is the fixed column order of the response log.
var Header = []string{"record_id", "student_id", "question_id", "correct", "elapsed_seconds", "confidence", "cause", "timestamp"}

// Evaluate compares a chosen option letter against the stored answer key,
// case-insensitively.
func Evaluate(q model.Question, choice string) model.Verdict {
	correct := strings.EqualFold(strings.TrimSpace(choice), strings.TrimSpace(q.AnswerKey))
	return model.Verdict{
		Correct:   correct,
		AnswerKey: strings.ToUpper(strings.TrimSpace(q.AnswerKey)),
		Comment:   q.Comment,
	}
}

// Grader runs the grading flow and records attempts.
type Grader struct {
	store *workbook.Store
	now   func() time.Time
}

// New creates a grader writing to the given store.
func New(store *workbook.Store) *Grader {
	return &Grader{store: store, now: time.Now}
}

// Outcome is the result of one submit action.
type Outcome struct {
	Verdict model.Verdict
	// PendingCause is set when the record was deferred and the UI must
	// now offer the four cause buttons.
	PendingCause bool
}

// Submit grades one answer for the session and either appends the record
// or parks it pending a cause pick, per the session's autopsy preference.
// The per-question timer resets once the record is actually written.
func (g *Grader) Submit(sess *session.Session, q model.Question, choice string, conf model.Confidence) (Outcome, error) {
	now := g.now()
	elapsed := sess.Elapsed(q.ID, now)
	verdict := Evaluate(q, choice)

	rec := model.ResponseRecord{
		StudentID:  sess.StudentID,
		QuestionID: q.ID,
		Correct:    verdict.Correct,
		ElapsedSec: elapsed,
		Confidence: conf,
	}

	if verdict.Correct {
		rec.Cause = model.CauseNA
		if err := g.append(rec); err != nil {
			return Outcome{}, err
		}
		sess.SetVerdict(q.ID, verdict)
		sess.ResetTimer(q.ID, now)
		return Outcome{Verdict: verdict}, nil
	}

	if !sess.Prefs().ShowAutopsy {
		rec.Cause = model.CauseUnclassified
		if err := g.append(rec); err != nil {
			return Outcome{}, err
		}
		sess.SetVerdict(q.ID, verdict)
		sess.ResetTimer(q.ID, now)
		return Outcome{Verdict: verdict}, nil
	}

	// Autopsy enabled: hold the record until a cause is chosen. Time and
	// confidence stay as captured at grading time.
	sess.SetVerdict(q.ID, verdict)
	sess.SetPending(q.ID, &session.PendingDiagnosis{Record: rec})
	return Outcome{Verdict: verdict, PendingCause: true}, nil
}

// Diagnose finishes a deferred grading: the chosen cause completes the
// parked record, which is appended, and the pending marker and timer are
// cleared. A write failure leaves the marker in place so the student can
// retry the cause pick.
func (g *Grader) Diagnose(sess *session.Session, questionID string, cause model.Cause) error {
	if !model.ValidCause(cause) {
		return fmt.Errorf("unknown cause %q", cause)
	}
	p := sess.Pending(questionID)
	if p == nil {
		return fmt.Errorf("no pending diagnosis for question %s", questionID)
	}

	rec := p.Record
	rec.Cause = cause
	if err := g.append(rec); err != nil {
		return err
	}

	sess.ClearPending(questionID)
	sess.ResetTimer(questionID, g.now())
	return nil
}

func (g *Grader) append(rec model.ResponseRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = g.now()
	}
	row := []any{
		rec.ID,
		rec.StudentID,
		rec.QuestionID,
		rec.Correct,
		rec.ElapsedSec,
		string(rec.Confidence),
		string(rec.Cause),
		rec.RecordedAt.Format(time.RFC3339),
	}
	if err := g.store.AppendRow(Sheet, Header, row); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// Records reads the full response log back, oldest first. Used by the
// export command; an absent sheet (nothing recorded yet) is not an error.
func Records(store *workbook.Store) ([]model.ResponseRecord, error) {
	t, err := store.ReadTable(Sheet)
	if err != nil {
		if errors.Is(err, workbook.ErrSheetMissing) {
			return nil, nil
		}
		return nil, err
	}

	var out []model.ResponseRecord
	for i := range t.Rows {
		rec := model.ResponseRecord{
			ID:         t.Cell(i, 0),
			StudentID:  t.Cell(i, 1),
			QuestionID: t.Cell(i, 2),
			Correct:    strings.EqualFold(t.Cell(i, 3), "true"),
			Confidence: model.Confidence(t.Cell(i, 5)),
			Cause:      model.Cause(t.Cell(i, 6)),
		}
		rec.ElapsedSec, _ = strconv.ParseFloat(t.Cell(i, 4), 64)
		if ts, err := time.Parse(time.RFC3339, t.Cell(i, 7)); err == nil {
			rec.RecordedAt = ts
		}
		out = append(out, rec)
	}
	return out, nil
}
