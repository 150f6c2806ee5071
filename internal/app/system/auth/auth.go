package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "planhub-session"

	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	userNameKey  = "user_name"
	userPhotoKey = "user_photo"
	userAgeKey   = "user_age"
	userGenKey   = "user_gender"
)

// SessionManager owns the signed cookie store. Identity itself is external:
// the session only carries the caller's public user snapshot.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
	log   *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager.
//
// An empty key is only tolerated outside production (secure=false); a random
// key is generated, so sessions do not survive a restart.
func NewSessionManager(sessionKey, name, domain string, ttl time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(sessionKey)
	switch {
	case sessionKey == "" && secure:
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	case sessionKey == "":
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, fmt.Errorf("generate session key: no entropy")
		}
		logger.Warn("session key not configured; using a random key")
	case len(sessionKey) < 32:
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = DefaultSessionName
	}

	store := sessions.NewCookieStore(key)
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	// Secure cookies may be sent cross-site; plain http in dev stays Lax.
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts
	store.MaxAge(opts.MaxAge)

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("ttl", ttl))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SignIn records u in the caller's session.
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u models.UserSnapshot) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[userPhotoKey] = u.PhotoURL
	sess.Values[userAgeKey] = u.Age
	sess.Values[userGenKey] = u.Gender
	return sess.Save(r, w)
}

// SignOut expires the caller's session cookie.
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-user helpers                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the signed-in user and a found flag.
func CurrentUser(r *http.Request) (models.UserSnapshot, bool) {
	u, ok := r.Context().Value(currentUserKey).(models.UserSnapshot)
	return u, ok
}

// WithTestUser injects u into the request context, bypassing the cookie.
// Intended for handler tests.
func WithTestUser(r *http.Request, u models.UserSnapshot) *http.Request {
	return withUser(r, u)
}

// LoadSessionUser injects the user into context if they are signed in.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.store.Get(r, m.name)
		if err != nil {
			// Tampered or stale-key cookie: treat as signed out.
			m.log.Debug("session decode failed", zap.Error(err))
		}
		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			u := models.UserSnapshot{
				ID:       getString(sess, userIDKey),
				Name:     getString(sess, userNameKey),
				PhotoURL: getString(sess, userPhotoKey),
				Gender:   getString(sess, userGenKey),
			}
			if age, ok := sess.Values[userAgeKey].(int); ok {
				u.Age = age
			}
			if u.ID != "" {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects requests without a user in context with a JSON
// 401 body.
func (m *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "unauthenticated",
				"message": "sign in required",
			},
		})
	})
}

// helpers

func withUser(r *http.Request, u models.UserSnapshot) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
