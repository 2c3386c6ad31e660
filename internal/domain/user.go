package domain

import "time"

// UserRole separates requesters from the technicians who work tickets.
type UserRole string

const (
	UserRoleUser       UserRole = "USER"
	UserRoleTechnician UserRole = "TECHNICIAN"
	UserRoleAdmin      UserRole = "ADMIN"
)

// User is anyone who can sign in or report a ticket.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
