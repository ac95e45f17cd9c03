// Package user provides user domain models and behaviors.
package user

import (
	"context"
	"errors"
	"time"

	"chat-server/services/chat-api/internal/domain"
)

// Preferences stores per-user UI and model defaults.
type Preferences struct {
	Theme              string `json:"theme,omitempty"`
	DefaultModel       string `json:"default_model,omitempty"`
	Language           string `json:"language,omitempty"`
	FontSize           string `json:"font_size,omitempty"`
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
}

// User models an application user resolved from an external identity provider.
type User struct {
	ID          uint
	PublicID    string
	Issuer      string
	Subject     string
	Email       *string
	Name        *string
	Preferences Preferences
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity encapsulates the externally provided identity attributes.
type Identity struct {
	Issuer  string
	Subject string
	Email   *string
	Name    *string
}

// IdentityFromPrincipal maps an authenticated principal onto an identity.
// Empty email or name stay unset rather than becoming empty strings.
func IdentityFromPrincipal(p domain.Principal) Identity {
	identity := Identity{Issuer: p.Issuer, Subject: p.Subject}
	if p.Email != "" {
		email := p.Email
		identity.Email = &email
	}
	if p.Name != "" {
		name := p.Name
		identity.Name = &name
	}
	return identity
}

// Repository defines storage operations for users.
type Repository interface {
	FindByIssuerAndSubject(ctx context.Context, issuer, subject string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	Upsert(ctx context.Context, user *User) (*User, error)
}

// ErrInvalidIdentity indicates missing issuer or subject on the identity payload.
var ErrInvalidIdentity = errors.New("invalid identity: issuer and subject are required")

// Service persists and resolves users from external identities.
type Service struct {
	repo Repository
}

// NewService constructs a Service with required dependencies.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureUser persists the given identity and returns the internal user record.
// The upsert keys on (issuer, subject), so concurrent first-sight calls for
// the same identity converge on a single row.
func (s *Service) EnsureUser(ctx context.Context, identity Identity) (*User, error) {
	if identity.Issuer == "" || identity.Subject == "" {
		return nil, ErrInvalidIdentity
	}

	email := identity.Email
	if email == nil {
		placeholder := identity.Subject + "@placeholder.local"
		email = &placeholder
	}

	usr := &User{
		Issuer:  identity.Issuer,
		Subject: identity.Subject,
		Email:   email,
		Name:    identity.Name,
	}

	return s.repo.Upsert(ctx, usr)
}
