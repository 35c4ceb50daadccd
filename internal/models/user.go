package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"rol"`
	DriverID     *int      `json:"conductor_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleUser   UserRole = "user"
	RoleDriver UserRole = "conductor"
)

func ValidRole(role string) bool {
	switch UserRole(role) {
	case RoleAdmin, RoleUser, RoleDriver:
		return true
	}
	return false
}

// RegisterRequest accepts both the current "name" field and the legacy
// "username"/"nombre" spellings sent by older clients.
type RegisterRequest struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Nombre   string `json:"nombre,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"telefono,omitempty"`
}

// DisplayName resolves the first non-empty name field.
func (r RegisterRequest) DisplayName() string {
	for _, n := range []string{r.Name, r.Username, r.Nombre} {
		if n != "" {
			return n
		}
	}
	return ""
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

// UserUpdate holds the fields a session may change on its own record.
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}
