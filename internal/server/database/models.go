package database

import "time"

// User is an administrator credential record.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// RoleAdmin is the only role the panel issues.
const RoleAdmin = "admin"
