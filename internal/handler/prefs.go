package handler

import (
	"log/slog"
	"net/http"

	appI18n "github.com/joshuadr04/lms-sistema/internal/i18n"
	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/session"
)

func (h *Handler) handlePrefsPage(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	page := prefsPage{base: h.newBase(r)}
	prefs := sess.Prefs()
	page.Settings = []prefSetting{
		{Flag: model.PrefRequirePassword, Label: appI18n.T(r.Context(), "PrefRequirePassword"), Value: prefs.RequirePassword},
		{Flag: model.PrefShowTimer, Label: appI18n.T(r.Context(), "PrefShowTimer"), Value: prefs.ShowTimer},
		{Flag: model.PrefShowConfidence, Label: appI18n.T(r.Context(), "PrefShowConfidence"), Value: prefs.ShowConfidence},
		{Flag: model.PrefShowAutopsy, Label: appI18n.T(r.Context(), "PrefShowAutopsy"), Value: prefs.ShowAutopsy},
	}
	h.render(w, r, "prefs", page)
}

// handleUpdatePref toggles one preference flag. The session copy only
// advances after the roster write succeeds, so a failed save leaves the
// running session on the old value.
func (h *Handler) handleUpdatePref(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)

	flag := model.PrefFlag(r.FormValue("flag"))
	value := r.FormValue("value") == "on"

	known := false
	for _, f := range model.PrefFlags {
		if f == flag {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "unknown preference", http.StatusBadRequest)
		return
	}

	if sess.TestMode {
		sess.SetFlash(appI18n.T(ctx, "PrefTestMode"))
		http.Redirect(w, r, h.path("/prefs"), http.StatusSeeOther)
		return
	}

	if err := h.roster.SetPreference(sess.StudentID, flag, value); err != nil {
		slog.Error("failed to save preference", "student", sess.StudentID, "flag", flag, "error", err)
		sess.SetFlash(appI18n.T(ctx, "PrefSaveFailed"))
		http.Redirect(w, r, h.path("/prefs"), http.StatusSeeOther)
		return
	}

	sess.SetPref(flag, value)
	sess.SetFlash(appI18n.T(ctx, "PrefSaved"))
	http.Redirect(w, r, h.path("/prefs"), http.StatusSeeOther)
}
