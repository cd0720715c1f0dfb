package model

import "time"

// Roles understood by the role middleware.
const (
	RoleAdmin  = "ADMIN"
	RoleViewer = "VIEWER"
)

// User represents an application user record as stored in the
// `users` table.  DisplayName is what the management view greets the
// user with.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique login email.
//  PasswordHash – bcrypt hashed password.
//  DisplayName  – human readable name.
//  Role         – ADMIN or VIEWER.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
