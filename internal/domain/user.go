package domain

import "time"

// UserRole enumerates access profiles.
type UserRole string

const (
	UserRoleAdmin   UserRole = "ADMIN"
	UserRoleManager UserRole = "MANAGER"
	UserRoleOfficer UserRole = "OFFICER"
)

// User is an authenticated operator of the system.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           UserRole
	MunicipalityID string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Actor identifies who performs an operation, for audit attribution.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  UserRole
}

// ActorFromUser builds audit attribution from a loaded user.
func ActorFromUser(u *User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
