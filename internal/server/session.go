package server

import (
	"net/http"

	"donateabook/internal/domain"
)

// bindSession establishes a server-side session for the user and sets the
// cookie carrying its token. Must be called before the response body is
// written. Binding happens only after a positive identity check in the
// handler, never speculatively.
func (s *Server) bindSession(w http.ResponseWriter, _ *http.Request, user domain.User) error {
	token, err := s.sessions.Establish(domain.Session{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
	})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// currentSession resolves the caller's identity from the session cookie.
// Any failure along the way reads as "no session"; handlers turn that into
// a 401 without distinguishing missing, expired, and tampered tokens.
func (s *Server) currentSession(r *http.Request) (domain.Session, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return domain.Session{}, false
	}
	session, found, err := s.sessions.Get(cookie.Value)
	if err != nil || !found {
		return domain.Session{}, false
	}
	return session, true
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
