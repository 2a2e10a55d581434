package models

import "time"

// Role determines what a user can do in the origination pipeline.
type Role string

const (
	RoleBorrower Role = "borrower"
	RoleOps      Role = "ops"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleBorrower || r == RoleOps || r == RoleAdmin
}

// IsStaff reports whether the role grants pipeline-wide access.
func (r Role) IsStaff() bool {
	return r == RoleOps || r == RoleAdmin
}

// User represents the user model in the database
type User struct {
	Base
	Email               string        `gorm:"uniqueIndex;not null" json:"email"`
	Password            string        `gorm:"not null" json:"-"`
	FirstName           string        `json:"first_name"`
	LastName            string        `json:"last_name"`
	Role                Role          `gorm:"not null;default:'borrower'" json:"role"`
	IsActive            bool          `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string        `gorm:"size:64" json:"-"`
	FailedLoginAttempts int           `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time    `json:"-"`
	LastLoginAt         *time.Time    `json:"last_login_at,omitempty"`
	LoanRequests        []LoanRequest `gorm:"foreignKey:BorrowerID" json:"loan_requests,omitempty"`
}
