package model

import "time"

// User is a front-desk staff account. Passwords are stored as bcrypt hashes.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	CompanyID    int64     `json:"company_id" db:"company_id"`
	IsSuperuser  bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
