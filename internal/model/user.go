package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Roles lists every role seeded at bootstrap.
var Roles = []string{RoleUser, RoleAdmin}

// Role is a named permission set referenced by users.
type Role struct {
	Name string `json:"name"`
}

// User represents a registered account
type User struct {
	ID             int64       `json:"id"`
	FullName       string      `json:"full_name"`
	PhoneNumber    PhoneNumber `json:"phone_number"`
	HashedPassword string      `json:"-"` // never leaves the server
	IsActive       bool        `json:"is_active"`
	Role           string      `json:"role"`
	AvatarKey      *string     `json:"avatar_key,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// SignupRequest is the body of POST /auth/signup
type SignupRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,phone"`
	Password    string `json:"password" binding:"required,min=6,bcryptlen"`
	FullName    string `json:"full_name" binding:"required,max=255"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,phone"`
	Password    string `json:"password" binding:"required"`
}

// RefreshRequest is the body of POST /auth/refresh and POST /auth/logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateUserRequest is the body of PATCH /users/me and PATCH /users/{id}.
// Pointers distinguish "absent" from "set to zero value".
type UpdateUserRequest struct {
	FullName    *string `json:"full_name,omitempty" binding:"omitempty,min=1,max=255"`
	PhoneNumber *string `json:"phone_number,omitempty" binding:"omitempty,phone"`
	IsActive    *bool   `json:"is_active,omitempty"`
	Role        *string `json:"role,omitempty" binding:"omitempty,oneof=user admin"`
}

// UserPatch is a partial update applied by the repository.
type UserPatch struct {
	FullName    *string
	PhoneNumber *PhoneNumber
	IsActive    *bool
	Role        *string
	AvatarKey   *string
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.FullName == nil && p.PhoneNumber == nil && p.IsActive == nil && p.Role == nil && p.AvatarKey == nil
}

// ListParams holds pagination for user listings
type ListParams struct {
	Limit  int
	Offset int
}
