// Package server exposes the HTTP surface of the donation service and owns
// session transport. Handlers detect validation and auth problems at the
// boundary, call into the app core, and map its sentinel errors onto status
// codes; every error body is a small {"error": "..."} object.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"donateabook/internal/app"
	"donateabook/internal/domain"
	"donateabook/internal/ratelimit"
	"donateabook/internal/store"
	"donateabook/internal/util"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "donateabook_session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Sessions store.SessionStore

	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	ClientOrigin string

	// Optional abuse limits; zero disables them.
	RedisAddr        string
	RedisPassword    string
	SignupRatePerMin int
	LoginRatePerMin  int
}

// Server exposes HTTP endpoints for the donation backend.
type Server struct {
	app           *app.App
	sessions      store.SessionStore
	mux           *http.ServeMux
	cookieName    string
	cookieSecure  bool
	sessionTTL    time.Duration
	clientOrigin  string
	signupLimiter *ratelimit.FixedWindowLimiter
	loginLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	origin := strings.TrimSpace(cfg.ClientOrigin)
	if origin == "" {
		origin = "http://localhost:3000"
	}
	s := &Server{
		app:          cfg.App,
		sessions:     cfg.Sessions,
		mux:          http.NewServeMux(),
		cookieName:   cookieName,
		cookieSecure: cfg.CookieSecure,
		sessionTTL:   sessionTTL,
		clientOrigin: origin,
	}
	if cfg.RedisAddr != "" && cfg.SignupRatePerMin > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "donateabook:ratelimit:signup", cfg.SignupRatePerMin, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init signup limiter: %w", err)
		}
		s.signupLimiter = limiter
	}
	if cfg.RedisAddr != "" && cfg.LoginRatePerMin > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "donateabook:ratelimit:login", cfg.LoginRatePerMin, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
		s.loginLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	handler := util.WithRequestLog(s.mux)
	handler = util.WithRequestID(handler)
	handler = util.WithCORS(s.clientOrigin, handler)
	return util.WithSecurityHeaders(handler)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// identity
	s.mux.HandleFunc("/users/check/email", s.handleCheckEmail)
	s.mux.HandleFunc("/users/check/password", s.handleCheckPassword)
	s.mux.HandleFunc("/signup", s.handleSignup)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.Handle("/users/profile", s.authenticated(s.handleProfile))

	// catalog
	s.mux.HandleFunc("/booksList", s.handleListBooks)
	s.mux.HandleFunc("/books/search", s.handleSearchBooks)
	s.mux.Handle("/books/add", s.authenticated(s.handleAddBook))
	s.mux.Handle("/books/request", s.authenticated(s.handleRequestBook))
	s.mux.Handle("/donations", s.authenticated(s.handleDonations))

	// stored images
	s.mux.HandleFunc("/uploads/", s.handleImage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionHandler receives the authenticated identity resolved from the cookie.
type sessionHandler func(http.ResponseWriter, *http.Request, domain.Session)

// authenticated rejects requests without a bound session. Privileged
// operations read the caller identity from here, never from client input.
func (s *Server) authenticated(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.currentSession(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, session)
	})
}

// handleCheckEmail reports whether the email is registered. A positive
// result also binds the session to that user before responding; the client
// relies on this early binding for all subsequent privileged calls.
func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	email := r.URL.Query().Get("email")
	user, ok, err := s.app.CheckEmail(r.Context(), email)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"emailExists": false})
		return
	}
	if err := s.bindSession(w, r, user); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"emailExists": true,
		"name":        user.FirstName,
		"userId":      user.ID,
	})
}

// handleCheckPassword validates credentials. A mismatch or unknown email is
// an ordinary {"passwordMatch": false} response, not an error; a match binds
// the session before responding.
func (s *Server) handleCheckPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	query := r.URL.Query()
	user, matched, err := s.app.CheckPassword(r.Context(), query.Get("email"), query.Get("password"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !matched {
		writeJSON(w, http.StatusOK, map[string]any{"passwordMatch": false})
		return
	}
	if err := s.bindSession(w, r, user); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passwordMatch": true})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req app.SignupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.SignUp(r.Context(), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.bindSession(w, r, user); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User created successfully",
		"userId":  user.ID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		_ = s.sessions.Delete(cookie.Value)
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, session domain.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, profile, err := s.app.Profile(r.Context(), session.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"firstName":      user.FirstName,
		"lastName":       user.LastName,
		"email":          user.Email,
		"address":        user.Address,
		"state":          user.State,
		"zipcode":        user.Zipcode,
		"country":        user.Country,
		"profilePicture": profile.ProfilePicture,
		"biography":      profile.Biography,
	})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	page := parseIntDefault(query.Get("page"), 1)
	limit := parseIntDefault(query.Get("limit"), app.DefaultPageSize)
	books, err := s.app.ListBooks(r.Context(), page, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	results, err := s.app.SearchBooks(r.Context(), query.Get("searchParam"), query.Get("value"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request, session domain.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// Bound a little above the image limit to leave room for form fields;
	// the app layer enforces the exact image size.
	maxUpload := s.app.MaxUpload()
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+1<<20)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, app.ErrImageTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrNoImage.Error())
		return
	}
	defer file.Close()

	fields := app.BookFields{
		Title:     r.FormValue("title"),
		Author:    r.FormValue("author"),
		Genre:     r.FormValue("genre"),
		Condition: r.FormValue("condition"),
		Grade:     r.FormValue("grade"),
	}
	image := app.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}
	if _, err := s.app.AddBook(r.Context(), session.UserID, fields, image); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Book added successfully"})
}

func (s *Server) handleRequestBook(w http.ResponseWriter, r *http.Request, session domain.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		BookID string `json:"bookId"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.BookID) == "" {
		writeError(w, http.StatusBadRequest, "bookId is required")
		return
	}
	if err := s.app.RequestBook(r.Context(), session.UserID, req.BookID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request sent successfully!"})
}

func (s *Server) handleDonations(w http.ResponseWriter, r *http.Request, session domain.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	donations, err := s.app.Donations(r.Context(), session.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donations)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	name := path.Base(strings.TrimPrefix(r.URL.Path, "/uploads/"))
	if name == "" || name == "." || name == "/" {
		http.NotFound(w, r)
		return
	}
	content, err := s.app.OpenImage(r.Context(), name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer content.Close()
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	_, _ = io.Copy(w, content)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// writeAppError maps core sentinel errors onto statuses; anything else is a
// dependency failure that gets logged with its cause and hidden behind a
// generic 500 body.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrMissingFields),
		errors.Is(err, app.ErrInvalidSearchParam),
		errors.Is(err, app.ErrNoImage),
		errors.Is(err, app.ErrUnsupportedImageType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, app.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrDonorNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
