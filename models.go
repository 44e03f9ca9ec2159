package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// DefaultRole is assigned to any user without roles
	DefaultRole UserRole = "user"
	// RoleAdmin is the role required by the admin endpoints
	RoleAdmin UserRole = "admin"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	FullName      *string    `bun:"full_name" json:"full_name,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Disabled      bool       `bun:"disabled,notnull" json:"disabled"`
	Roles         []string   `bun:"roles,type:jsonb" json:"roles"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	LastLogin     *time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
}

// Principal is the authenticated identity resolved from the user store.
// It never carries the password hash.
type Principal struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  *string    `json:"full_name,omitempty"`
	Disabled  bool       `json:"disabled"`
	Roles     []string   `json:"roles"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Principal builds the principal view of the user
func (u *User) Principal() *Principal {
	if u == nil {
		return nil
	}
	return &Principal{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Disabled:  u.Disabled,
		Roles:     NormalizeRoles(u.Roles),
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// HasAnyRole reports whether the principal holds at least one of roles
func (p *Principal) HasAnyRole(roles ...string) bool {
	if p == nil {
		return false
	}
	return NewRoleSet(p.Roles...).Intersects(NewRoleSet(roles...))
}

// NormalizeRoles trims and de-duplicates roles keeping their order. An
// empty result is replaced by DefaultRole.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}

	if len(out) == 0 {
		return []string{DefaultRole}
	}
	return out
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Username = strings.TrimSpace(record.Username)
	record.Email = strings.TrimSpace(record.Email)
	record.Roles = NormalizeRoles(record.Roles)

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}
