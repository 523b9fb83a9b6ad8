// Package security handles account registration, password verification and
// the cookie sessions that scope every analysis to its owner.
package security

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/logging"
)

// minPasswordLength matches the registration form's rule.
const minPasswordLength = 6

// Manager verifies credentials against the configured store and issues
// sessions.
type Manager struct {
	store    datastore.Interface
	sessions *sessionStore
	admins   map[string]bool
	logger   *slog.Logger
}

// New creates a manager bound to the given user store. Emails listed in
// security.adminemails register with the admin role.
func New(settings *conf.Settings, store datastore.Interface) *Manager {
	logger := logging.ForService("security")
	if logger == nil {
		logger = slog.Default().With("service", "security")
	}

	admins := make(map[string]bool, len(settings.Security.AdminEmails))
	for _, email := range settings.Security.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}

	return &Manager{
		store:    store,
		sessions: newSessionStore(settings, logger),
		admins:   admins,
		logger:   logger,
	}
}

// Register creates a new account with a bcrypt password hash. The plain
// password never leaves this function.
func (m *Manager) Register(ctx context.Context, name, email, password string) (*datastore.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.Newf("invalid email address").
			Component("security").
			Category(errors.CategoryValidation).
			Context("reason", "invalid_email").
			Build()
	}
	if len(password) < minPasswordLength {
		return nil, errors.Newf("password must be at least %d characters", minPasswordLength).
			Component("security").
			Category(errors.CategoryValidation).
			Context("reason", "weak_password").
			Build()
	}

	switch _, err := m.store.GetUserByEmail(ctx, email); {
	case err == nil:
		return nil, errors.Newf("email %s is already registered", email).
			Component("security").
			Category(errors.CategoryValidation).
			Context("reason", "email_in_use").
			Build()
	case !errors.IsNotFound(err):
		// A failing store must not let registration proceed to a write.
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New(err).
			Component("security").
			Category(errors.CategoryAuth).
			Context("operation", "hash_password").
			Build()
	}

	role := datastore.RoleUser
	if m.admins[email] {
		role = datastore.RoleAdmin
	}

	user := &datastore.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := m.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	m.logger.Info("account registered", "user_id", user.ID, "role", role)
	return user, nil
}

// Authenticate checks email and password. Unknown accounts and wrong
// passwords both come back as the same auth error so login cannot be used
// to probe which emails exist.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*datastore.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	badCredentials := func() error {
		return errors.Newf("invalid email or password").
			Component("security").
			Category(errors.CategoryAuth).
			Context("reason", "bad_credentials").
			Build()
	}

	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, badCredentials()
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		m.logger.Warn("failed login attempt", "user_id", user.ID)
		return nil, badCredentials()
	}
	return user, nil
}
