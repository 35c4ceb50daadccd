package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tecnoroute/internal/models"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// userRecord is the stored form of a user, hash included.
type userRecord struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

type UserService struct {
	store  store.Store
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewUserService(s store.Store, logger zerolog.Logger) *UserService {
	return &UserService{
		store:  s,
		logger: logger,
	}
}

// Register creates a customer account. The role is always user.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	name := strings.TrimSpace(req.DisplayName())
	if name == "" || req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: nombre, email y contraseña son obligatorios", ErrInvalidInput)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: la contraseña debe tener al menos 6 caracteres", ErrInvalidInput)
	}
	return s.CreateUser(ctx, name, req.Email, req.Password, models.RoleUser, nil)
}

func (s *UserService) CreateUser(ctx context.Context, name, email, password string, role models.UserRole, driverID *int) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Find(ctx, store.KindUsers, "email", email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error checking existing user")
		return nil, fmt.Errorf("database error: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	var user models.User
	_, err = s.store.Insert(ctx, store.KindUsers, func(id int) ([]byte, error) {
		user = models.User{
			ID:        id,
			Username:  name,
			Email:     email,
			Role:      string(role),
			DriverID:  driverID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return json.Marshal(userRecord{User: user, PasswordHash: string(hashedPassword)})
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Int("user_id", user.ID).Str("email", user.Email).Str("role", user.Role).Msg("User registered successfully")
	return &user, nil
}

func (s *UserService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email y contraseña son obligatorios", ErrInvalidInput)
	}

	records, err := store.FindAs[userRecord](ctx, s.store, store.KindUsers, "email", strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, fmt.Errorf("database error: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrInvalidCredentials
	}

	rec := records[0]
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("email", req.Email).Msg("Failed authentication attempt")
		return nil, ErrInvalidCredentials
	}

	s.logger.Info().Int("user_id", rec.ID).Str("email", rec.Email).Msg("User authenticated successfully")
	user := rec.User
	return &user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	rec, err := store.GetAs[userRecord](ctx, s.store, store.KindUsers, userID)
	if err != nil {
		return nil, err
	}
	user := rec.User
	return &user, nil
}

// LinkDriver attaches a driver profile id to a user account.
func (s *UserService) LinkDriver(ctx context.Context, userID, driverID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := store.GetAs[userRecord](ctx, s.store, store.KindUsers, userID)
	if err != nil {
		return err
	}
	rec.DriverID = &driverID
	rec.UpdatedAt = time.Now().UTC()
	if err := store.PutAs(ctx, s.store, store.KindUsers, userID, rec); err != nil {
		return err
	}
	s.logger.Info().Int("user_id", userID).Str("driver_id", strconv.Itoa(driverID)).Msg("Driver profile linked")
	return nil
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	docs, err := s.store.List(ctx, store.KindUsers)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
