package domain

import "time"

// User is an account holder. Email is stored lower-cased.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
