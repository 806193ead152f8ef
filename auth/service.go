// Package auth registers users, checks credentials and guards operations that
// need an authenticated session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/padraicbc/library/apperr"
	"github.com/padraicbc/library/logger"
	"github.com/padraicbc/library/models"
	"github.com/padraicbc/library/session"
)

const (
	maxUsernameLen = 64
	maxEmailLen    = 254
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// UserStore is the part of the users collection the Service needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ByUsername(ctx context.Context, username string) (*models.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	username string
	email    string
	password string
}

// NewRegisterInput trims and validates registration fields.
func NewRegisterInput(username, email, password string) (RegisterInput, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return RegisterInput{}, err
	}
	if email == "" {
		return RegisterInput{}, apperr.Invalid("email", "is required")
	}
	if len(email) > maxEmailLen {
		return RegisterInput{}, apperr.Invalid("email", "is too long")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return RegisterInput{}, apperr.Invalid("email", "is not a valid address")
	}
	if err := validatePassword(password); err != nil {
		return RegisterInput{}, err
	}
	return RegisterInput{username: username, email: email, password: password}, nil
}

// LoginInput is a validated login request.
type LoginInput struct {
	username string
	password string
}

// NewLoginInput trims and validates login fields.
func NewLoginInput(username, password string) (LoginInput, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return LoginInput{}, apperr.Invalid("username", "is required")
	}
	if password == "" {
		return LoginInput{}, apperr.Invalid("password", "is required")
	}
	return LoginInput{username: username, password: password}, nil
}

func validateUsername(u string) error {
	if u == "" {
		return apperr.Invalid("username", "is required")
	}
	if len(u) > maxUsernameLen {
		return apperr.Invalid("username", "is too long")
	}
	return nil
}

func validatePassword(p string) error {
	if strings.TrimSpace(p) == "" {
		return apperr.Invalid("password", "is required")
	}
	if len(p) > maxPasswordLen {
		return apperr.Invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordLen))
	}
	return nil
}

// Service implements register, login, logout and the authentication guard.
type Service struct {
	users     UserStore
	passwords *Passwords
	log       *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService returns a Service storing users in users.
func NewService(users UserStore, passwords *Passwords, log *zap.Logger) *Service {
	return &Service{
		users:     users,
		passwords: passwords,
		log:       logger.OrNop(log).Named("auth"),
	}
}

// Register stores a new user with a hashed password. A taken username or
// email yields *apperr.ConflictError naming the field.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := s.passwords.Hash(in.password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: in.username, Email: in.email, Password: hash}
	if err := s.users.Create(ctx, u); err != nil {
		if field, ok := apperr.IsConflict(err); ok {
			s.log.Info("registration conflict", zap.String("field", field))
		}
		return nil, err
	}

	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Login checks the credentials and, only on success, stores the session in slot.
func (s *Service) Login(ctx context.Context, in LoginInput, slot session.Slot) (session.Session, error) {
	u, err := s.users.ByUsername(ctx, in.username)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return session.Session{}, err
		}
		// Spend the same time as a real comparison.
		_, _ = s.passwords.Verify(s.dummy(), in.password)
		return session.Session{}, apperr.ErrInvalidCredentials
	}

	ok, err := s.passwords.Verify(u.Password, in.password)
	if err != nil {
		s.log.Warn("unverifiable password hash", zap.Int64("user_id", u.ID), zap.Error(err))
		return session.Session{}, apperr.ErrInvalidCredentials
	}
	if !ok {
		return session.Session{}, apperr.ErrInvalidCredentials
	}

	sess := session.Session{UserID: u.ID, Username: u.Username}
	if err := slot.Set(sess); err != nil {
		return session.Session{}, fmt.Errorf("set session: %w", err)
	}
	s.log.Info("user logged in", zap.Int64("user_id", u.ID))
	return sess, nil
}

// Logout clears the session. It is a no-op when none is active.
func (s *Service) Logout(slot session.Slot) {
	slot.Clear()
}

// RequireAuthenticated returns the active session, or apperr.ErrAuthRequired
// when there is none or its user no longer exists.
func (s *Service) RequireAuthenticated(ctx context.Context, slot session.Slot) (session.Session, error) {
	sess, err := slot.Get()
	if err != nil {
		return session.Session{}, apperr.ErrAuthRequired
	}

	ok, err := s.users.Exists(ctx, sess.UserID)
	if err != nil {
		return session.Session{}, err
	}
	if !ok {
		slot.Clear()
		return session.Session{}, apperr.ErrAuthRequired
	}
	return sess, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.passwords.Hash("not-a-real-password")
	})
	return s.dummyHash
}
