package localstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/errors"
)

func (s *Store) usersPath() string {
	return filepath.Join(s.path, usersFile)
}

func (s *Store) readUsers() ([]datastore.User, error) {
	if exists, _ := afero.Exists(s.fs, s.usersPath()); !exists {
		return nil, nil
	}
	data, err := afero.ReadFile(s.fs, s.usersPath())
	if err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "read_users").
			Build()
	}
	var users []datastore.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "decode_users").
			Build()
	}
	return users, nil
}

func (s *Store) writeUsers(users []datastore.User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "encode_users").
			Build()
	}
	if err := afero.WriteFile(s.fs, s.usersPath(), data, recordFileMode); err != nil {
		return errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "write_users").
			Build()
	}
	return nil
}

// CreateUser appends a new account, rejecting duplicate emails the way the
// database's unique index would.
func (s *Store) CreateUser(ctx context.Context, user *datastore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].Email == user.Email {
			return errors.Newf("email %s is already registered", user.Email).
				Component("localstore").
				Category(errors.CategoryLocalStore).
				Context("operation", "create_user").
				Build()
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = datastore.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	return s.writeUsers(append(users, *user))
}

// ListUsers returns every account, in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]datastore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readUsers()
}

// GetUserByEmail looks an account up by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*datastore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, errors.Newf("no account for email").
		Component("localstore").
		Category(errors.CategoryNotFound).
		Build()
}

// GetUser looks an account up by id.
func (s *Store) GetUser(ctx context.Context, id string) (*datastore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, errors.Newf("no account with id %s", id).
		Component("localstore").
		Category(errors.CategoryNotFound).
		Build()
}
