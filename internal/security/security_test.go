package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/localstore"
)

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Security.SessionSecret = "test-secret-0123456789"
	settings.Security.SessionMaxAge = 3600
	settings.Security.AdminEmails = []string{"admin@example.com"}
	return settings
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := localstore.NewWithFs(afero.NewMemMapFs(), "/data")
	require.NoError(t, store.Open())
	return New(testSettings(), store)
}

func TestRegister(t *testing.T) {
	m := newTestManager(t)

	t.Run("valid registration", func(t *testing.T) {
		user, err := m.Register(context.Background(), "Noor", "Noor@Example.com ", "secret123")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "noor@example.com", user.Email, "email normalized")
		assert.Equal(t, datastore.RoleUser, user.Role)
		assert.NotEqual(t, "secret123", user.PasswordHash)
		assert.NotContains(t, user.PasswordHash, "secret123")
	})

	t.Run("listed admin email gets the admin role", func(t *testing.T) {
		user, err := m.Register(context.Background(), "Admin", "Admin@Example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, datastore.RoleAdmin, user.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := m.Register(context.Background(), "Other", "noor@example.com", "secret123")
		require.Error(t, err)
		assert.Equal(t, msgEmailInUse, MessageFor(err))
	})

	t.Run("malformed email", func(t *testing.T) {
		_, err := m.Register(context.Background(), "X", "not-an-email", "secret123")
		require.Error(t, err)
		assert.Equal(t, msgInvalidEmail, MessageFor(err))
	})

	t.Run("short password", func(t *testing.T) {
		_, err := m.Register(context.Background(), "X", "x@example.com", "12345")
		require.Error(t, err)
		assert.Equal(t, msgWeakPassword, MessageFor(err))
	})
}

func TestAuthenticate(t *testing.T) {
	m := newTestManager(t)
	registered, err := m.Register(context.Background(), "Noor", "noor@example.com", "secret123")
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		user, err := m.Authenticate(context.Background(), "noor@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
	})

	t.Run("wrong password and unknown email look identical", func(t *testing.T) {
		_, wrongPass := m.Authenticate(context.Background(), "noor@example.com", "wrong")
		require.Error(t, wrongPass)
		assert.True(t, errors.IsAuthRequired(wrongPass))

		_, unknown := m.Authenticate(context.Background(), "ghost@example.com", "secret123")
		require.Error(t, unknown)
		assert.Equal(t, MessageFor(wrongPass), MessageFor(unknown))
		assert.Equal(t, msgBadCredentials, MessageFor(unknown))
	})
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager(t)
	user := &datastore.User{ID: "user-1", Name: "Noor", Email: "noor@example.com"}

	e := echo.New()

	// Sign in and capture the cookie.
	req := httptest.NewRequest(http.MethodPost, "/login", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, m.SignIn(c, user))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	withSession := func(target string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
		return e.NewContext(req, httptest.NewRecorder())
	}

	t.Run("session carries the user", func(t *testing.T) {
		id, name, ok := m.SessionUser(withSession("/whoami"))
		require.True(t, ok)
		assert.Equal(t, "user-1", id)
		assert.Equal(t, "Noor", name)
	})

	t.Run("middleware admits the session", func(t *testing.T) {
		c := withSession("/protected")
		called := false
		handler := m.RequireAuth(func(c echo.Context) error {
			called = true
			assert.Equal(t, "user-1", UserID(c))
			return nil
		})
		require.NoError(t, handler(c))
		assert.True(t, called)
	})

	t.Run("middleware rejects anonymous requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", http.NoBody)
		c := e.NewContext(req, httptest.NewRecorder())
		err := m.RequireAuth(func(c echo.Context) error { return nil })(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		assert.Equal(t, msgLoginRequired, httpErr.Message)
	})

	t.Run("sign out invalidates the cookie", func(t *testing.T) {
		c := withSession("/logout")
		require.NoError(t, m.SignOut(c))
		_, _, ok := m.SessionUser(c)
		assert.False(t, ok)
	})
}

// failingUserStore wraps a working store but breaks account lookups.
type failingUserStore struct {
	datastore.Interface
}

func (f *failingUserStore) GetUserByEmail(ctx context.Context, email string) (*datastore.User, error) {
	return nil, errors.Newf("user lookup failed").
		Component("localstore").
		Category(errors.CategoryDatabase).
		Build()
}

func TestRegisterAbortsWhenLookupFails(t *testing.T) {
	store := localstore.NewWithFs(afero.NewMemMapFs(), "/data")
	require.NoError(t, store.Open())
	m := New(testSettings(), &failingUserStore{store})

	_, err := m.Register(context.Background(), "Noor", "noor@example.com", "secret123")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase),
		"the store failure surfaces instead of being read as a free email")

	users, listErr := store.ListUsers(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, users, "no account written behind the failing lookup")
}

func TestForgedSessionCookieRejected(t *testing.T) {
	m := newTestManager(t)
	e := echo.New()

	// An attacker without the configured secret signs a cookie with an
	// empty key and claims someone else's user id.
	forge := sessions.NewCookieStore([]byte(""))
	seed := httptest.NewRequest(http.MethodGet, "/protected", http.NoBody)
	rec := httptest.NewRecorder()
	forged, _ := forge.New(seed, sessionName)
	forged.Values[userIDKey] = "victim-user"
	require.NoError(t, forged.Save(seed, rec))

	attack := httptest.NewRequest(http.MethodGet, "/protected", http.NoBody)
	for _, cookie := range rec.Result().Cookies() {
		attack.AddCookie(cookie)
	}
	c := e.NewContext(attack, httptest.NewRecorder())

	err := m.RequireAuth(func(echo.Context) error { return nil })(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestGeneratedSecretSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	SetTestConfigPath(dir)
	defer SetTestConfigPath("")

	store := localstore.NewWithFs(afero.NewMemMapFs(), "/data")
	require.NoError(t, store.Open())
	settings := testSettings()
	settings.Security.SessionSecret = ""

	first := New(settings, store)
	user := &datastore.User{ID: "user-1", Name: "Noor", Email: "noor@example.com"}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/login", http.NoBody), rec)
	require.NoError(t, first.SignIn(c, user))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	info, err := os.Stat(filepath.Join(dir, sessionSecretFile))
	require.NoError(t, err, "generated secret is persisted")
	assert.NotZero(t, info.Size())

	// A second manager, as after a restart, reads the persisted secret
	// and still accepts the cookie.
	second := New(settings, store)
	req := httptest.NewRequest(http.MethodGet, "/whoami", http.NoBody)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	id, _, ok := second.SessionUser(e.NewContext(req, httptest.NewRecorder()))
	require.True(t, ok)
	assert.Equal(t, "user-1", id)
}
