package core

import (
	"context"
	"strings"
	"time"
)

// AccountRecord is the persisted account row plus its first assigned role.
type AccountRecord struct {
	ID           int64
	UserName     string
	FullName     string
	PhoneNumber  string
	Status       string
	PasswordHash string
	RegisteredAt time.Time
	Role         string // first assigned role; empty when none
}

// AccountView is the public projection of an account (no password hash).
type AccountView struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"userName"`
	FullName     string    `json:"fullName"`
	UserRole     string    `json:"userRole"`
	MobilePhone  string    `json:"mobilePhone"`
	UserStatus   string    `json:"userStatus"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (r AccountRecord) View() AccountView {
	return AccountView{
		ID:           r.ID,
		UserName:     r.UserName,
		FullName:     r.FullName,
		UserRole:     r.Role,
		MobilePhone:  r.PhoneNumber,
		UserStatus:   r.Status,
		RegisteredAt: r.RegisteredAt,
	}
}

// RegisterInput carries the fields accepted by registration.
type RegisterInput struct {
	UserName    string `json:"userName"`
	FullName    string `json:"fullName"`
	MobilePhone string `json:"mobilePhone"`
	UserStatus  string `json:"userStatus"`
	UserRole    string `json:"userRole"`
	Password    string `json:"password"`
}

// UpdateInput carries the mutable profile fields. An empty UserRole keeps the current role.
type UpdateInput struct {
	UserName    string `json:"userName"`
	FullName    string `json:"fullName"`
	MobilePhone string `json:"mobilePhone"`
	UserStatus  string `json:"userStatus"`
	UserRole    string `json:"userRole"`
}

// AccountManager is the account use-case surface consumed by the HTTP layer.
type AccountManager interface {
	Register(ctx context.Context, in RegisterInput) (int64, error)
	Authenticate(ctx context.Context, userName, password string) (*LoginResult, error)
	List(ctx context.Context) ([]AccountView, error)
	Get(ctx context.Context, id int64) (AccountView, error)
	Update(ctx context.Context, id int64, in UpdateInput) error
	Delete(ctx context.Context, id int64) error
}

// NormalizeUserName returns the case-folded key used for uniqueness and lookup.
func NormalizeUserName(userName string) string {
	return strings.ToUpper(strings.TrimSpace(userName))
}
