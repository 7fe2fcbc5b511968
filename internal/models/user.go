package models

import "time"

// User roles
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleAdmin     = "admin"
)

// User is an account able to own memory records. Username and email are
// stored lowercased so uniqueness is case-insensitive on both backends.
type User struct {
	ID        string     `json:"id" bson:"id"`
	Username  string     `json:"username" bson:"username" validate:"required,min=3,max=64"`
	Email     string     `json:"email" bson:"email" validate:"required,email"`
	Password  string     `json:"password" bson:"password" validate:"required"` // Argon2id hash
	Role      string     `json:"role" bson:"role" validate:"required,oneof=assistant user admin"`
	APIKey    string     `json:"apiKey" bson:"apiKey" validate:"required"`
	LastLogin *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	Timestamps `bson:",inline"`
}

func (u *User) Key() string      { return u.ID }
func (u *User) Owner() string    { return "" }
func (u *User) TagSet() []string { return nil }

func (u *User) Expired(time.Time) bool { return false }

func (u *User) Attr(field string) (string, bool) {
	switch field {
	case "id":
		return u.ID, true
	case "username":
		return u.Username, true
	case "email":
		return u.Email, true
	case "role":
		return u.Role, true
	case "apiKey":
		return u.APIKey, true
	}
	return "", false
}

// PublicUser is the API view of a user; it never carries the password hash
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	APIKey   string `json:"apiKey"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		APIKey:   u.APIKey,
	}
}

// RegisterRequest is the request body for POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=256"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=assistant user admin"`
}

// LoginRequest is the request body for POST /auth/login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
