package model

import (
	"context"
	"time"
)

// PrefFlag identifies one of the per-student boolean preference flags.
type PrefFlag string

const (
	// PrefRequirePassword gates login behind the stored password.
	PrefRequirePassword PrefFlag = "require_password"
	// PrefShowTimer shows the advisory per-question timer.
	PrefShowTimer PrefFlag = "show_timer"
	// PrefShowConfidence replaces the single submit control with three
	// confidence-labeled ones.
	PrefShowConfidence PrefFlag = "show_confidence"
	// PrefShowAutopsy enables error-cause tagging after a wrong answer.
	PrefShowAutopsy PrefFlag = "show_autopsy"
)

// PrefFlags lists all preference flags in roster column order.
var PrefFlags = []PrefFlag{PrefRequirePassword, PrefShowTimer, PrefShowConfidence, PrefShowAutopsy}

// Preferences is a student's preference snapshot, loaded at login and kept
// in the session. It is advanced only after a confirmed store write.
type Preferences struct {
	RequirePassword bool
	ShowTimer       bool
	ShowConfidence  bool
	ShowAutopsy     bool
}

// Flag returns the value of a single preference flag.
func (p Preferences) Flag(f PrefFlag) bool {
	switch f {
	case PrefRequirePassword:
		return p.RequirePassword
	case PrefShowTimer:
		return p.ShowTimer
	case PrefShowConfidence:
		return p.ShowConfidence
	case PrefShowAutopsy:
		return p.ShowAutopsy
	}
	return false
}

// SetFlag sets a single preference flag.
func (p *Preferences) SetFlag(f PrefFlag, v bool) {
	switch f {
	case PrefRequirePassword:
		p.RequirePassword = v
	case PrefShowTimer:
		p.ShowTimer = v
	case PrefShowConfidence:
		p.ShowConfidence = v
	case PrefShowAutopsy:
		p.ShowAutopsy = v
	}
}

// Student is a roster row: one principal identified by matriculation number.
// Rows are created out-of-band; the application only ever updates the
// preference flags.
type Student struct {
	ID          string // matriculation number, stored as text
	DisplayName string
	Password    string // plaintext or bcrypt hash; empty means none set
	Prefs       Preferences
}

// Question is one multiple-choice question from the question bank.
// Read-only from the application's perspective.
type Question struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	Year       string `json:"year"`
	Difficulty string `json:"difficulty"`
	Sequence   int    `json:"sequence"`
	Statement  string `json:"statement"`
	OptionA    string `json:"option_a"`
	OptionB    string `json:"option_b"`
	OptionC    string `json:"option_c"`
	OptionD    string `json:"option_d"`
	AnswerKey  string `json:"answer_key"` // a-d
	Comment    string `json:"comment"`
}

// Confidence is the self-reported certainty captured at grading time.
type Confidence string

const (
	ConfidenceLow      Confidence = "Low/Guess"
	ConfidenceMedium   Confidence = "Medium/Doubt"
	ConfidenceHigh     Confidence = "High/Certain"
	ConfidenceDisabled Confidence = "Disabled"
)

// Cause is the error-cause label picked during the autopsy step.
type Cause string

const (
	CauseCareless     Cause = "Careless slip"
	CauseMisread      Cause = "Misread statement"
	CauseConceptGap   Cause = "Concept gap"
	CauseGuess        Cause = "Guess"
	CauseUnclassified Cause = "Unclassified" // incorrect with autopsy disabled
	CauseNA           Cause = "N/A"          // correct answers
)

// Causes lists the four cause buttons in display order.
var Causes = []Cause{CauseCareless, CauseMisread, CauseConceptGap, CauseGuess}

// ValidCause reports whether c is one of the four pickable causes.
func ValidCause(c Cause) bool {
	for _, known := range Causes {
		if c == known {
			return true
		}
	}
	return false
}

// ResponseRecord is one append-only fact in the response log. Records are
// never mutated; an amended diagnosis appends a new record instead.
type ResponseRecord struct {
	ID         string     `json:"record_id"`
	StudentID  string     `json:"student_id"`
	QuestionID string     `json:"question_id"`
	Correct    bool       `json:"correct"`
	ElapsedSec float64    `json:"elapsed_seconds"` // rounded to 2 decimals
	Confidence Confidence `json:"confidence"`
	Cause      Cause      `json:"cause"`
	RecordedAt time.Time  `json:"timestamp"`
}

// Verdict is the outcome of grading shown back to the student.
type Verdict struct {
	Correct   bool
	AnswerKey string // upper-cased key, shown on incorrect answers
	Comment   string // explanation, shown on incorrect answers
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
