package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tecnoroute/internal/models"
	"tecnoroute/internal/session"

	"github.com/rs/zerolog"
)

type AuthStatus int

const (
	AuthLoading AuthStatus = iota
	AuthUnauthenticated
	AuthAuthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case AuthLoading:
		return "loading"
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Result is what login and register report back to the caller.
type Result struct {
	Success bool
	Error   string
}

// AuthListener is told about every transition into or out of a session.
type AuthListener func(user *models.User, authenticated bool)

type AuthService struct {
	backend AuthBackend
	store   session.Store
	logger  zerolog.Logger

	mu        sync.RWMutex
	status    AuthStatus
	user      *models.User
	listeners []AuthListener
}

func NewAuthService(backend AuthBackend, store session.Store, logger zerolog.Logger) *AuthService {
	return &AuthService{
		backend: backend,
		store:   store,
		logger:  logger,
		status:  AuthLoading,
	}
}

// OnChange registers fn. Listeners run synchronously, before the call that
// changed the session returns.
func (s *AuthService) OnChange(fn AuthListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Hydrate restores a persisted session. A corrupt user record is evicted
// and treated as no session.
func (s *AuthService) Hydrate(ctx context.Context) error {
	raw, err := s.store.Get(ctx, session.KeyUser)
	if errors.Is(err, session.ErrNotFound) {
		s.set(AuthUnauthenticated, nil)
		return nil
	}
	if err != nil {
		s.set(AuthUnauthenticated, nil)
		return fmt.Errorf("failed to read session: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		s.logger.Warn().Err(err).Msg("Discarding corrupt stored user")
		if delErr := s.store.Delete(ctx, session.KeyUser); delErr != nil {
			s.logger.Warn().Err(delErr).Msg("Failed to evict corrupt user")
		}
		s.set(AuthUnauthenticated, nil)
		return nil
	}

	s.set(AuthAuthenticated, &user)
	s.logger.Debug().Int("user_id", user.ID).Str("role", user.Role).Msg("Session restored")
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Result{Error: "El email y la contraseña son obligatorios"}
	}

	user, token, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("Login failed")
		return Result{Error: loginErrorMessage(err)}
	}

	if err := s.persist(ctx, user, token); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
		return Result{Error: MsgGeneric}
	}

	s.set(AuthAuthenticated, user)
	s.logger.Info().Int("user_id", user.ID).Str("role", user.Role).Msg("User logged in")
	return Result{Success: true}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) Result {
	if req.DisplayName() == "" || req.Email == "" || req.Password == "" {
		return Result{Error: "Nombre, email y contraseña son obligatorios"}
	}

	user, token, err := s.backend.Register(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("Registration failed")
		return Result{Error: FormatError(err)}
	}

	if err := s.persist(ctx, user, token); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
		return Result{Error: MsgGeneric}
	}

	s.set(AuthAuthenticated, user)
	s.logger.Info().Int("user_id", user.ID).Msg("User registered")
	return Result{Success: true}
}

func (s *AuthService) Logout(ctx context.Context) error {
	var errs []error
	for _, key := range []string{session.KeyUser, session.KeyToken} {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	s.set(AuthUnauthenticated, nil)
	s.logger.Info().Msg("User logged out")
	return errors.Join(errs...)
}

// SessionExpired ends the session after the API rejected the token.
func (s *AuthService) SessionExpired() {
	if !s.IsAuthenticated() {
		return
	}
	if err := s.store.Delete(context.Background(), session.KeyUser); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear expired session")
	}
	s.set(AuthUnauthenticated, nil)
	s.logger.Warn().Msg("Session expired, re-authentication required")
}

// UpdateUser merges the given fields into the current user. Role and id
// are not updatable.
func (s *AuthService) UpdateUser(ctx context.Context, update models.UserUpdate) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	next := *s.user
	if update.Username != nil {
		next.Username = *update.Username
	}
	if update.Email != nil {
		next.Email = *update.Email
	}
	s.mu.Unlock()

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.store.Set(ctx, session.KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}

	s.mu.Lock()
	s.user = &next
	s.mu.Unlock()
	return nil
}

func (s *AuthService) Status() AuthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// User returns a copy of the current user, or nil.
func (s *AuthService) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *AuthService) IsAuthenticated() bool {
	return s.Status() == AuthAuthenticated
}

func (s *AuthService) hasRole(role models.UserRole) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role == string(role)
}

func (s *AuthService) IsAdmin() bool  { return s.hasRole(models.RoleAdmin) }
func (s *AuthService) IsUser() bool   { return s.hasRole(models.RoleUser) }
func (s *AuthService) IsDriver() bool { return s.hasRole(models.RoleDriver) }

func (s *AuthService) persist(ctx context.Context, user *models.User, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.store.Set(ctx, session.KeyUser, string(data)); err != nil {
		return err
	}
	return s.store.Set(ctx, session.KeyToken, token)
}

func (s *AuthService) set(status AuthStatus, user *models.User) {
	s.mu.Lock()
	s.status = status
	s.user = user
	listeners := append([]AuthListener(nil), s.listeners...)
	s.mu.Unlock()

	authenticated := status == AuthAuthenticated
	for _, fn := range listeners {
		var u *models.User
		if user != nil {
			cp := *user
			u = &cp
		}
		fn(u, authenticated)
	}
}

func loginErrorMessage(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return err.Error()
	}
	return FormatError(err)
}
