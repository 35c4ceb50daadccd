package state

import (
	"context"
	"errors"
	"strings"
	"time"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("credenciales inválidas")

// AuthBackend authenticates a user and returns it with an opaque token.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, string, error)
}

type LiveAuthBackend struct {
	api *apiclient.Client
}

func NewLiveAuthBackend(api *apiclient.Client) *LiveAuthBackend {
	return &LiveAuthBackend{api: api}
}

func (b *LiveAuthBackend) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	resp, err := b.api.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	return normalizeAuth(resp, email)
}

func (b *LiveAuthBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.User, string, error) {
	if req.Name == "" {
		req.Name = req.DisplayName()
	}
	resp, err := b.api.Auth.Register(ctx, req)
	if err != nil {
		return nil, "", err
	}
	user, token, err := normalizeAuth(resp, req.Email)
	if err != nil {
		return nil, "", err
	}
	user.Role = string(models.RoleUser)
	return user, token, nil
}

// normalizeAuth fills the fields the backend is allowed to omit.
func normalizeAuth(resp *models.AuthResponse, email string) (*models.User, string, error) {
	if resp == nil || resp.User == nil || resp.Token == "" {
		return nil, "", errors.New("respuesta de autenticación incompleta")
	}
	user := *resp.User
	if user.Email == "" {
		user.Email = email
	}
	if user.Username == "" {
		user.Username = strings.Split(user.Email, "@")[0]
	}
	if !models.ValidRole(user.Role) {
		user.Role = string(models.RoleUser)
	}
	return &user, resp.Token, nil
}

type demoAccount struct {
	hash []byte
	user models.User
}

// MockAuthBackend serves a fixed set of demo accounts without any server.
// It is only wired in when DEMO_MODE is enabled and must never ship in a
// production build.
type MockAuthBackend struct {
	accounts map[string]demoAccount
	now      func() time.Time
}

type DemoCredential struct {
	Email    string
	Password string
	User     models.User
}

func DefaultDemoCredentials() []DemoCredential {
	driverID := 1
	return []DemoCredential{
		{Email: "admin@tecnoroute.com", Password: "admin123", User: models.User{ID: 1, Username: "Administrador", Role: string(models.RoleAdmin)}},
		{Email: "user@tecnoroute.com", Password: "user123", User: models.User{ID: 2, Username: "Cliente Demo", Role: string(models.RoleUser)}},
		{Email: "conductor@tecnoroute.com", Password: "conductor123", User: models.User{ID: 3, Username: "Conductor Demo", Role: string(models.RoleDriver), DriverID: &driverID}},
	}
}

func NewMockAuthBackend(creds []DemoCredential) *MockAuthBackend {
	accounts := make(map[string]demoAccount, len(creds))
	for _, c := range creds {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.MinCost)
		if err != nil {
			continue
		}
		u := c.User
		u.Email = c.Email
		accounts[strings.ToLower(c.Email)] = demoAccount{hash: hash, user: u}
	}
	return &MockAuthBackend{accounts: accounts, now: time.Now}
}

func (b *MockAuthBackend) Login(_ context.Context, email, password string) (*models.User, string, error) {
	acc, ok := b.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	u := acc.user
	return &u, "demo-" + uuid.NewString(), nil
}

// Register synthesizes a user with a time-based id and the user role.
func (b *MockAuthBackend) Register(_ context.Context, req models.RegisterRequest) (*models.User, string, error) {
	now := b.now()
	user := &models.User{
		ID:        int(now.UnixMilli()),
		Username:  req.DisplayName(),
		Email:     req.Email,
		Role:      string(models.RoleUser),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return user, "demo-" + uuid.NewString(), nil
}

// FallbackAuthBackend uses Demo only when Primary could not be reached.
type FallbackAuthBackend struct {
	Primary AuthBackend
	Demo    AuthBackend
	Logger  zerolog.Logger
}

func (b *FallbackAuthBackend) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, token, err := b.Primary.Login(ctx, email, password)
	if errors.Is(err, apiclient.ErrNetwork) {
		b.Logger.Warn().Err(err).Msg("API unreachable, using demo credentials")
		return b.Demo.Login(ctx, email, password)
	}
	return user, token, err
}

func (b *FallbackAuthBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.User, string, error) {
	user, token, err := b.Primary.Register(ctx, req)
	if errors.Is(err, apiclient.ErrNetwork) {
		b.Logger.Warn().Err(err).Msg("API unreachable, registering locally")
		return b.Demo.Register(ctx, req)
	}
	return user, token, err
}

// NewRegisterRequest builds a request from the legacy positional form
// (name, email, password[, phone]).
func NewRegisterRequest(args ...string) models.RegisterRequest {
	var req models.RegisterRequest
	fields := []*string{&req.Name, &req.Email, &req.Password, &req.Phone}
	for i, a := range args {
		if i >= len(fields) {
			break
		}
		*fields[i] = a
	}
	return req
}
