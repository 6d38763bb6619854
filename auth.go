package main

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "session"
	loggedInKey       = "logged_in"
	sessionMaxAge     = 24 * 60 * 60

	msgPleaseLogIn = "Please log in."
)

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// newSessionStore returns a cookie store whose values are signed with
// secret. Everything lives in the cookie; nothing is kept server side.
func newSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	// sets both the cookie lifetime and the signature's expiry
	store.MaxAge(sessionMaxAge)
	return store
}

// Session is the per-request view of the client's signed session cookie.
// Changes are only sent to the client by Save.
type Session struct {
	raw *sessions.Session
}

func (s *Session) LoggedIn() bool {
	v, ok := s.raw.Values[loggedInKey].(bool)
	return ok && v
}

func (s *Session) LogIn() {
	s.raw.Values[loggedInKey] = true
}

func (s *Session) LogOut() {
	delete(s.raw.Values, loggedInKey)
}

func (s *Session) Flash(msg string) {
	s.raw.AddFlash(msg)
}

// Flashes pops every queued flash message.
func (s *Session) Flashes() []string {
	var msgs []string
	for _, f := range s.raw.Flashes() {
		if msg, ok := f.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (s *Session) Save(w http.ResponseWriter, r *http.Request) error {
	if s.raw.Store() == nil {
		return nil
	}
	return s.raw.Save(r, w)
}

type sessionContextKey struct{}

// loadSession decodes the session cookie once and stores it in the request
// context. A cookie that fails verification is replaced by an empty session.
func (b *Blog) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := b.sessions.Get(r, sessionCookieName)
		if err != nil {
			b.logger.Debug("discarding invalid session cookie", zap.Error(err))
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, &Session{raw: raw})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the request's session. Outside loadSession it returns
// an empty, unsaved session.
func sessionFrom(r *http.Request) *Session {
	if s, ok := r.Context().Value(sessionContextKey{}).(*Session); ok {
		return s
	}
	return &Session{raw: sessions.NewSession(nil, sessionCookieName)}
}

// requireLogin guards HTML routes: anonymous requests get a bare 401.
func (b *Blog) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.authorize(w, r) {
			http.Error(w, msgPleaseLogIn, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireLoginJSON guards JSON routes with the same check as requireLogin
// but answers with a status object.
func (b *Blog) requireLoginJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.authorize(w, r) {
			writeJSON(w, http.StatusUnauthorized, statusResponse{Status: 0, Message: msgPleaseLogIn})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize reports whether the session is logged in. When it is not, the
// login prompt is queued as a flash for the next page the client renders.
func (b *Blog) authorize(w http.ResponseWriter, r *http.Request) bool {
	s := sessionFrom(r)
	if s.LoggedIn() {
		return true
	}

	s.Flash(msgPleaseLogIn)
	if err := s.Save(w, r); err != nil {
		b.logger.Error("saving session", zap.Error(err))
	}
	return false
}
