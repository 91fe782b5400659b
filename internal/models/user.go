package models

import (
	"time"

	"github.com/google/uuid"
)

// Operator roles. Only admins may authorize settlement.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// User represents an operator account stored in the user registry.
type User struct {
	UserID    uuid.UUID `json:"user_id"`    // Primary key
	Username  string    `json:"username"`   // Unique username
	Email     string    `json:"email"`      // Operator email
	Password  string    `json:"password"`   // Hashed password
	Role      string    `json:"role"`       // admin or operator
	CreatedAt time.Time `json:"created_at"` // Creation timestamp
	UpdatedAt time.Time `json:"updated_at"` // Last update timestamp
}
