package domain

import "time"

// Role is the authorization tag stored on a user record.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User is the credential record owned by the repository.
// Email is the unique sign-in identifier; PasswordHash is never the plaintext.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the trusted caller view of the record.
func (u *User) Identity() Identity {
	return Identity{SubjectID: u.ID, Email: u.Email, Role: u.Role}
}
