package http

import (
	"net/http"
	"unicode/utf8"

	applog "kakeibo/internal/log"
)

const maxDevUserIDLength = 64

type signInView struct {
	DevLogin bool
	User     string
	Error    string
}

func (s *Server) canDevLogin() bool {
	return s.devLogin && s.sessions != nil
}

// handleSignInPage shows how to sign in. Signed-in callers go straight to
// the dashboard.
func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if s.identity.Identify(r).Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderSignIn(w, r, http.StatusOK, signInView{DevLogin: s.canDevLogin()})
}

// handleSignIn issues a session for any user id. It only exists for local
// development; production identities come from the external provider.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if !s.canDevLogin() {
		http.NotFound(w, r)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	user := sanitizeInput(r.PostForm.Get("user"))
	if user == "" || utf8.RuneCountInString(user) > maxDevUserIDLength {
		s.renderSignIn(w, r, http.StatusUnprocessableEntity, signInView{
			DevLogin: true,
			User:     user,
			Error:    "Enter a user id of at most 64 characters.",
		})
		return
	}

	token, err := s.sessions.Issue(user, s.sessionTTL)
	if err != nil {
		logger.Failure(ctx, "Session issue failed", err, applog.OpSignIn)
		http.Error(w, "Could not sign in", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.sessions.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Info("Development sign-in", applog.FieldComponent, applog.ComponentAuth, applog.FieldUserID, user)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignOut clears the session cookie.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     s.sessions.CookieName(),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if IsHTMX(r) {
		w.Header().Set("HX-Redirect", signInPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, signInPath, http.StatusSeeOther)
}

func (s *Server) renderSignIn(w http.ResponseWriter, r *http.Request, status int, v signInView) {
	body, err := s.render("sign_in.html", v)
	if err != nil {
		applog.FromContext(r.Context()).Failure(r.Context(), "Sign-in render failed", err, applog.OpRender)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, body)
}
