package api

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName    = "session"
	sessionKeyUser = "user"
	sessionMaxAge  = 30 * 24 * 60 * 60 // 30 days, survives browser restarts
)

// A SessionUser is the account stored in the session cookie.
type SessionUser struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

func init() {
	gob.Register(SessionUser{})
}

// SessionStore manages the signed session cookie.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore builds a cookie-backed session store signed with secret.
// Secure should be set when the site is served over HTTPS.
func NewSessionStore(secret string, secure bool) *SessionStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

// User returns the authenticated user from the request's session cookie.
func (s *SessionStore) User(r *http.Request) (SessionUser, bool) {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return SessionUser{}, false
	}
	u, ok := sess.Values[sessionKeyUser].(SessionUser)
	if !ok || u.TelegramID == 0 {
		return SessionUser{}, false
	}
	return u, true
}

// SetUser writes the user into the session cookie, refreshing its lifetime.
func (s *SessionStore) SetUser(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[sessionKeyUser] = u
	return sess.Save(r, w)
}

// Clear drops the session cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	delete(sess.Values, sessionKeyUser)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
