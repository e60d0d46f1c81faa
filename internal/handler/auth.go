package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	appI18n "github.com/joshuadr04/lms-sistema/internal/i18n"
	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/roster"
	"github.com/joshuadr04/lms-sistema/internal/session"
)

const (
	sessionCookie = "session"
	csrfCookie    = "csrf_token"
	csrfField     = "csrf_token"
)

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	page := loginPage{base: h.newBase(r)}
	h.render(w, r, "login", page)
}

// handleLogin resolves the submitted identifier. Students without a
// password requirement are signed in directly; the rest get a password
// prompt. An unreachable or empty roster falls back to a shared test
// account so the portal stays usable.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.FormValue("identifier"))

	empty, rosterErr := h.roster.Empty()
	if rosterErr != nil || empty {
		if rosterErr != nil {
			slog.Warn("roster unavailable, entering test mode", "error", rosterErr)
		}
		h.startSession(w, r, model.Student{
			ID:          "test",
			DisplayName: appI18n.T(ctx, "TestModeStudent"),
		}, true)
		return
	}

	if id == "" {
		h.renderLoginError(w, r, appI18n.T(ctx, "ErrIDNotFound"))
		return
	}

	s, err := h.roster.Lookup(id)
	if err != nil {
		if !errors.Is(err, roster.ErrNotFound) {
			slog.Error("roster lookup failed", "error", err)
		}
		h.renderLoginError(w, r, appI18n.T(ctx, "ErrIDNotFound"))
		return
	}

	if !s.Prefs.RequirePassword {
		h.startSession(w, r, *s, false)
		return
	}

	page := loginPage{base: h.newBase(r)}
	page.Identifier = s.ID
	page.PromptPassword = true
	page.Greeting = appI18n.Td(ctx, "HelloEnterPassword", map[string]any{"Name": s.DisplayName})
	h.render(w, r, "login", page)
}

// handleLoginPassword completes the second login step.
func (h *Handler) handleLoginPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.FormValue("identifier"))
	password := r.FormValue("password")

	s, err := h.roster.Lookup(id)
	if err != nil {
		h.renderLoginError(w, r, appI18n.T(ctx, "ErrIDNotFound"))
		return
	}
	if err := h.roster.Verify(s, password); err != nil {
		page := loginPage{base: h.newBase(r)}
		page.Identifier = s.ID
		page.PromptPassword = true
		page.Greeting = appI18n.Td(ctx, "HelloEnterPassword", map[string]any{"Name": s.DisplayName})
		page.Error = appI18n.T(ctx, "ErrWrongPassword")
		h.render(w, r, "login", page)
		return
	}
	h.startSession(w, r, *s, false)
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, msg string) {
	page := loginPage{base: h.newBase(r)}
	page.Error = msg
	h.render(w, r, "login", page)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, s model.Student, testMode bool) {
	sess := h.sessions.Create(s, testMode)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     h.path("/"),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("student signed in", "student", s.ID, "test_mode", testMode)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		h.sessions.Delete(sess.Token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     h.path("/"),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

// requireAuth resolves the session cookie and puts the session in the
// request context, redirecting anonymous requests to the login page.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
			return
		}
		sess := h.sessions.Get(c.Value)
		if sess == nil {
			http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.ContextWith(r.Context(), sess)))
	})
}

// csrfMiddleware implements the double-submit-cookie pattern: a random
// token is issued in a cookie and must be echoed back in a hidden form
// field on every state-changing request.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(csrfCookie); err == nil && c.Value != "" {
			token = c.Value
		} else {
			token = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookie,
				Value:    token,
				Path:     h.path("/"),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			field := r.FormValue(csrfField)
			if field == "" || subtle.ConstantTimeCompare([]byte(field), []byte(token)) != 1 {
				http.Error(w, "invalid CSRF token", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(model.ContextWithCSRFToken(r.Context(), token)))
	})
}
