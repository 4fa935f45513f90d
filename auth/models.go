package auth

import "time"

type Role string

const (
	RoleArbitrator Role = "arbitrator"
	RoleSecretary  Role = "secretary"
	RoleCaseAdmin  Role = "case_admin"
)

// Actor is the resolved identity every core operation receives from the
// routing layer. The engine consumes it; it never authenticates.
type Actor struct {
	ID   string
	Role Role
}

// IsPrivileged reports whether the role may perform signature-grade
// operations (signing sessions and decisions, cancellations, deletions).
func IsPrivileged(role Role) bool {
	return role == RoleArbitrator || role == RoleCaseAdmin
}

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
