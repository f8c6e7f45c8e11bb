package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Manage permissions grant cross-owner administrative access per resource
// type, distinct from plain admin role membership.
const (
	PermManageBooks    = "manage_books"
	PermManageGallery  = "manage_gallery"
	PermManageAllTrees = "manage_all_trees"
	PermManageUsers    = "manage_users"
)

const adminRoleID = 1

// User is the authenticated principal attached to request context.
type User struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Status      string   `json:"status"`
	RoleID      int64    `json:"roleId"`
	RoleName    string   `json:"roleName"`
	Permissions []string `json:"permissions"`

	// SessionToken is the single current session identifier stored on the
	// user row; tokens minted for earlier sessions no longer match it.
	SessionToken string `json:"-"`
}

// IsAdmin collapses the two historical admin signals (role id 1, role name
// "admin" case-insensitively) into one check.
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.RoleID == adminRoleID || strings.EqualFold(u.RoleName, "admin")
}

// HasPermission is true unconditionally for admins, otherwise true iff the
// permission is in the user's set.
func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasAnyPermission is HasPermission with an OR over the list.
func (u *User) HasAnyPermission(permissions ...string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	for _, required := range permissions {
		for _, p := range u.Permissions {
			if p == required {
				return true
			}
		}
	}
	return false
}

// Claims are the JWT payload: the subject user and the session identifier
// minted at login. A token remains valid only while sid matches the
// session token stored on the user row.
type Claims struct {
	UserID    int64  `json:"user_id"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUserNotFound       = errors.New("user not found")
)

type userCtxKey struct{}

// ContextWithUser attaches the authenticated user to the request context.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(*User)
	return user, ok && user != nil
}
