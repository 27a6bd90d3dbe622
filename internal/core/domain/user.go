package domain

import "time"

// User models an account as held by the user store. The auth core only ever
// writes RefreshTokenHash (and Role through ChangeRole).
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     string    `json:"-"`
	Role             Role      `json:"role"`
	RefreshTokenHash string    `json:"-"` // empty = no active session
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PublicUser is the subset of User fields that may leave the service.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Public strips credentials and session state.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// WithoutSecrets returns a copy with the password and refresh-token hashes cleared.
func (u *User) WithoutSecrets() *User {
	clone := *u
	clone.PasswordHash = ""
	clone.RefreshTokenHash = ""
	return &clone
}

// HasSession reports whether a refresh-token hash is currently stored.
func (u *User) HasSession() bool {
	return u.RefreshTokenHash != ""
}
