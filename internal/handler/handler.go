package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/joshuadr04/lms-sistema/internal/bank"
	"github.com/joshuadr04/lms-sistema/internal/grade"
	appI18n "github.com/joshuadr04/lms-sistema/internal/i18n"
	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/roster"
	"github.com/joshuadr04/lms-sistema/internal/session"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

// Config holds runtime parameters set via CLI flags.
type Config struct {
	BasePath      string // URL prefix for sub-path deployments
	PublicURL     string // externally reachable base URL, for QR links
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *workbook.Store
	roster   *roster.Roster
	sessions *session.Manager
	grader   *grade.Grader
	config   Config
}

// New creates a new Handler.
func New(store *workbook.Store, r *roster.Roster, sm *session.Manager, g *grade.Grader, cfg Config) (*Handler, error) {
	return &Handler{store: store, roster: r, sessions: sm, grader: g, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Post("/login/password", h.handleLoginPassword)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/", h.handleBrowse)
			r.Post("/logout", h.handleLogout)
			r.Post("/questions/{questionID}/answer", h.handleAnswer)
			r.Post("/questions/{questionID}/cause", h.handleCause)
			r.Get("/prefs", h.handlePrefsPage)
			r.Post("/prefs", h.handleUpdatePref)
		})
	})

	// Served without auth so third-party embeds can show the code.
	r.Get("/lists/{code}/qr.png", h.handleListQR)
}

// BasePathMiddleware stores the configured base path in the request context
// so templates can build prefixed URLs.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

// handleBrowse renders the main view: either the interactive filter/browse
// page, the exam view, or — when the external navigation parameter is
// present — a pre-filtered topic list.
func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	if code := strings.TrimSpace(r.URL.Query().Get("list")); code != "" {
		h.renderListView(w, r, code)
		return
	}

	ctx := r.Context()
	sess := session.FromContext(ctx)
	page := browsePage{base: h.newBase(r)}

	b, err := bank.Load(h.store)
	if err != nil {
		slog.Warn("question bank unavailable", "error", err)
		page.Error = appI18n.T(ctx, "BankUnavailable")
	}

	q := r.URL.Query()
	page.View = q.Get("view")
	if page.View != "exam" {
		page.View = "filter"
	}
	page.Mode = q.Get("mode")
	if page.Mode != "or" {
		page.Mode = "and"
	}
	page.ExamYear = q.Get("exam_year")
	page.SubjectOptions = b.Options(bank.AttrSubject)
	page.YearOptions = b.Options(bank.AttrYear)
	page.DifficultyOptions = b.Options(bank.AttrDifficulty)
	page.SelSubjects = toSet(q["subject"])
	page.SelYears = toSet(q["year"])
	page.SelDifficulties = toSet(q["difficulty"])

	var questions []model.Question
	if page.View == "exam" {
		if page.ExamYear == "" {
			page.PromptChooseYear = true
		} else {
			questions = b.ExamView(page.ExamYear)
		}
	} else {
		comb := bank.And
		if page.Mode == "or" {
			comb = bank.Or
		}
		preds := []bank.Predicate{
			{Attr: bank.AttrSubject, Values: q["subject"]},
			{Attr: bank.AttrYear, Values: q["year"]},
			{Attr: bank.AttrDifficulty, Values: q["difficulty"]},
		}
		var warned []string
		questions, warned = b.Filter(preds, comb)
		for _, attr := range warned {
			page.Warnings = append(page.Warnings, appI18n.Td(ctx, "FilterWarning", map[string]any{"Attr": attr}))
		}
	}

	page.CountLabel = appI18n.Tp(ctx, "QuestionsFound", len(questions))
	page.Questions = h.questionCards(page.base, sess, questions, r.URL.RequestURI())
	h.render(w, r, "browse", page)
}

func (h *Handler) renderListView(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	page := listPage{base: h.newBase(r), Code: code}
	page.Title = appI18n.Td(ctx, "ListTitle", map[string]any{"Code": code})

	questions, err := bank.LoadList(h.store, code)
	if err != nil {
		slog.Warn("lists sheet unavailable", "list", code, "error", err)
		page.Error = appI18n.T(ctx, "ListsUnavailable")
	} else if len(questions) == 0 {
		page.Error = appI18n.Td(ctx, "ListNotFound", map[string]any{"Code": code})
	}

	page.Questions = h.questionCards(page.base, sess, questions, r.URL.RequestURI())
	h.render(w, r, "list", page)
}

// handleAnswer grades one submitted answer. Submitting with no option
// selected re-prompts and changes nothing.
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	questionID := chi.URLParam(r, "questionID")
	back := h.backURL(r)

	q, ok := bank.Find(h.store, questionID)
	if !ok {
		http.Error(w, "unknown question", http.StatusNotFound)
		return
	}

	choice := strings.TrimSpace(r.FormValue("choice"))
	if choice == "" {
		sess.SetFlash(appI18n.T(ctx, "PickOption"))
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	conf := model.ConfidenceDisabled
	if sess.Prefs().ShowConfidence {
		switch r.FormValue("confidence") {
		case "low":
			conf = model.ConfidenceLow
		case "medium":
			conf = model.ConfidenceMedium
		case "high":
			conf = model.ConfidenceHigh
		}
	}

	if _, err := h.grader.Submit(sess, q, choice, conf); err != nil {
		slog.Error("failed to record response", "question", questionID, "error", err)
		sess.SetFlash(appI18n.T(ctx, "RecordFailed"))
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// handleCause completes a deferred grading with the chosen error cause.
func (h *Handler) handleCause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	questionID := chi.URLParam(r, "questionID")
	back := h.backURL(r)

	cause := model.Cause(r.FormValue("cause"))
	if err := h.grader.Diagnose(sess, questionID, cause); err != nil {
		slog.Error("failed to record diagnosis", "question", questionID, "error", err)
		sess.SetFlash(appI18n.T(ctx, "RecordFailed"))
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// handleListQR serves a QR code pointing at the embeddable list URL.
func (h *Handler) handleListQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	target := strings.TrimRight(h.config.PublicURL, "/") + h.path("/?list="+url.QueryEscape(code))

	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		slog.Error("failed to encode QR", "list", code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// questionCards builds the per-question view state, marking first-shown
// timestamps as a side effect of rendering.
func (h *Handler) questionCards(b base, sess *session.Session, questions []model.Question, backURL string) []questionCard {
	ctx := b.r.Context()
	now := time.Now()
	prefs := sess.Prefs()

	cards := make([]questionCard, 0, len(questions))
	for _, q := range questions {
		sess.MarkShown(q.ID, now)
		card := questionCard{
			base:           b,
			Q:              q,
			BackURL:        backURL,
			ShowConfidence: prefs.ShowConfidence,
			Pending:        sess.Pending(q.ID) != nil,
		}
		if prefs.ShowTimer {
			card.TimerLabel = appI18n.Td(ctx, "TimerSeconds", map[string]any{
				"Seconds": fmt.Sprintf("%.0f", sess.Elapsed(q.ID, now)),
			})
		}
		if v, ok := sess.Verdict(q.ID); ok {
			vv := &verdictView{Correct: v.Correct}
			if v.Correct {
				vv.Text = appI18n.T(ctx, "Correct")
			} else {
				vv.Text = appI18n.Td(ctx, "IncorrectKey", map[string]any{"Key": v.AnswerKey})
				vv.Comment = v.Comment
			}
			card.Verdict = vv
		}
		cards = append(cards, card)
	}
	return cards
}

// backURL returns the in-app URL to return to after a POST, defaulting to
// the browse page. Only relative paths are accepted.
func (h *Handler) backURL(r *http.Request) string {
	back := r.FormValue("back")
	if back == "" || !strings.HasPrefix(back, "/") || strings.HasPrefix(back, "//") {
		return h.path("/")
	}
	return back
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
