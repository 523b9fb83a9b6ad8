package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/errors"
)

const (
	sessionName       = "redharvest-session"
	userIDKey         = "user_id"
	userNameKey       = "user_name"
	sessionSecretFile = "session.key"
)

// testConfigPath overrides where a generated session secret is persisted.
// Set by SetTestConfigPath in tests, empty otherwise.
var testConfigPath string

// SetTestConfigPath points session secret persistence at a test directory.
// Reset it to the empty string after the test.
func SetTestConfigPath(path string) {
	testConfigPath = path
}

// contextUserKey is where the auth middleware parks the signed-in user id
// on the echo context.
const contextUserKey = "auth_user_id"

type sessionStore struct {
	store  *sessions.CookieStore
	maxAge int
}

func newSessionStore(settings *conf.Settings, logger *slog.Logger) *sessionStore {
	store := sessions.NewCookieStore(createSessionKey(resolveSessionSecret(settings, logger)))
	maxAge := settings.Security.SessionMaxAge
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionStore{store: store, maxAge: maxAge}
}

// createSessionKey derives a 32-byte signing key from the seed, so the
// cookie HMAC always runs on a full-length key regardless of how long the
// configured secret is.
func createSessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

// resolveSessionSecret returns the configured secret. When none is set, a
// random secret is generated once and persisted next to the configuration
// so sessions survive restarts. An empty or guessable signing key would
// let anyone mint a cookie for an arbitrary user id.
func resolveSessionSecret(settings *conf.Settings, logger *slog.Logger) string {
	if settings.Security.SessionSecret != "" {
		return settings.Security.SessionSecret
	}

	secret, err := loadOrCreateSecret(secretFilePath())
	if err != nil {
		logger.Warn("failed to persist generated session secret, sessions will not survive restarts", "error", err)
		return randomSecret()
	}
	return secret
}

func secretFilePath() string {
	dir := testConfigPath
	if dir == "" {
		if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
			dir = paths[0]
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, sessionSecretFile)
}

func loadOrCreateSecret(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data), nil
	}

	secret := randomSecret()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", err
	}
	return secret, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("cannot generate session secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// SignIn writes a session cookie for the user.
func (m *Manager) SignIn(c echo.Context, user *datastore.User) error {
	session, _ := m.sessions.store.Get(c.Request(), sessionName)
	session.Values[userIDKey] = user.ID
	session.Values[userNameKey] = user.Name
	session.Options.MaxAge = m.sessions.maxAge

	if err := session.Save(c.Request(), c.Response()); err != nil {
		return errors.New(err).
			Component("security").
			Category(errors.CategoryAuth).
			Context("operation", "save_session").
			Build()
	}
	return nil
}

// SignOut expires the session cookie.
func (m *Manager) SignOut(c echo.Context) error {
	session, _ := m.sessions.store.Get(c.Request(), sessionName)
	session.Options.MaxAge = -1
	session.Values = make(map[any]any)
	return session.Save(c.Request(), c.Response())
}

// SessionUser returns the signed-in user's id and name from the cookie.
func (m *Manager) SessionUser(c echo.Context) (id, name string, ok bool) {
	session, err := m.sessions.store.Get(c.Request(), sessionName)
	if err != nil {
		return "", "", false
	}
	id, ok = session.Values[userIDKey].(string)
	if !ok || id == "" {
		return "", "", false
	}
	name, _ = session.Values[userNameKey].(string)
	return id, name, true
}

// RequireAuth rejects requests without a valid session and stores the user
// id on the context for handlers.
func (m *Manager) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, _, ok := m.SessionUser(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, MessageFor(errors.Newf("login required").
				Component("security").
				Category(errors.CategoryAuth).
				Build()))
		}
		c.Set(contextUserKey, id)
		return next(c)
	}
}

// RequireAdmin admits only accounts carrying the admin role. It must run
// after RequireAuth so the user id is already on the context.
func (m *Manager) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := m.store.GetUser(c.Request().Context(), UserID(c))
		if err != nil || user.Role != datastore.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, msgNotAllowed)
		}
		return next(c)
	}
}

// UserID reads the id the middleware stored on the context.
func UserID(c echo.Context) string {
	id, _ := c.Get(contextUserKey).(string)
	return id
}
