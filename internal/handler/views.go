package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	appI18n "github.com/joshuadr04/lms-sistema/internal/i18n"
	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// base carries the state every page needs: localization, the CSRF token,
// URL prefixing and the signed-in student.
type base struct {
	r *http.Request

	BasePath    string
	CSRF        string
	StudentName string
	TestMode    bool
	Flash       string
	SignedIn    bool
}

func (h *Handler) newBase(r *http.Request) base {
	b := base{
		r:        r,
		BasePath: model.BasePathFromContext(r.Context()),
		CSRF:     model.CSRFTokenFromContext(r.Context()),
	}
	if sess := session.FromContext(r.Context()); sess != nil {
		b.SignedIn = true
		b.StudentName = sess.DisplayName
		b.TestMode = sess.TestMode
		b.Flash = sess.PopFlash()
	}
	return b
}

// T localizes a message key for the request's language.
func (b base) T(key string) string {
	return appI18n.T(b.r.Context(), key)
}

// Path prefixes an in-app path with the configured base path.
func (b base) Path(p string) string {
	return b.BasePath + p
}

type loginPage struct {
	base
	Identifier     string
	PromptPassword bool
	Greeting       string
	Error          string
}

type browsePage struct {
	base
	View              string
	Mode              string
	ExamYear          string
	PromptChooseYear  bool
	SubjectOptions    []string
	YearOptions       []string
	DifficultyOptions []string
	SelSubjects       map[string]bool
	SelYears          map[string]bool
	SelDifficulties   map[string]bool
	Warnings          []string
	Error             string
	CountLabel        string
	Questions         []questionCard
}

type listPage struct {
	base
	Code      string
	Title     string
	Error     string
	Questions []questionCard
}

type prefsPage struct {
	base
	Settings []prefSetting
}

type prefSetting struct {
	Flag  model.PrefFlag
	Label string
	Value bool
}

type questionCard struct {
	base
	Q              model.Question
	BackURL        string
	TimerLabel     string
	ShowConfidence bool
	Pending        bool
	Verdict        *verdictView
}

type verdictView struct {
	Correct bool
	Text    string
	Comment string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name+".tmpl", data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
	}
}
