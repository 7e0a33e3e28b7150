package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// AuthKind tells how an actor proves its identity.
type AuthKind string

const (
	AuthLocal    AuthKind = "LOCAL"
	AuthExternal AuthKind = "EXTERNAL"
)

var (
	ErrInvalidCredentials = errors.New("credentials do not match their auth kind")
	ErrNotLocalAccount    = errors.New("account does not use a local password")
)

// Credentials is a tagged union: a LOCAL actor carries only a password hash,
// an EXTERNAL actor carries only the provider name. Build values with
// LocalCredentials or ExternalCredentials.
type Credentials struct {
	Kind         AuthKind `bson:"kind" json:"kind"`
	PasswordHash string   `bson:"passwordHash,omitempty" json:"-"`
	Provider     string   `bson:"provider,omitempty" json:"provider,omitempty"`
}

func LocalCredentials(passwordHash string) Credentials {
	return Credentials{Kind: AuthLocal, PasswordHash: passwordHash}
}

func ExternalCredentials(provider string) Credentials {
	return Credentials{Kind: AuthExternal, Provider: strings.ToUpper(strings.TrimSpace(provider))}
}

// Validate rejects a hash on an external account and a provider on a local one.
func (c Credentials) Validate() error {
	switch c.Kind {
	case AuthLocal:
		if c.PasswordHash == "" || c.Provider != "" {
			return ErrInvalidCredentials
		}
	case AuthExternal:
		if c.Provider == "" || c.PasswordHash != "" {
			return ErrInvalidCredentials
		}
	default:
		return ErrInvalidCredentials
	}
	return nil
}

// Actor is any account holder: student, maintenance staff or admin.
type Actor struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	MobileNumber string             `bson:"mobileNumber,omitempty" json:"mobileNumber,omitempty"`
	Auth         Credentials        `bson:"auth" json:"auth"`
	Active       bool               `bson:"active" json:"active"`
	AvatarURL    *string            `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	Version      int64              `bson:"version" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NormalizeEmail is the canonical form used for the unique email index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword hashes plain and turns the actor into a LOCAL account.
func (a *Actor) SetPassword(plain string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.Auth = LocalCredentials(string(hashed))
	return nil
}

// ComparePassword always fails for external accounts.
func (a *Actor) ComparePassword(candidate string) error {
	if a.Auth.Kind != AuthLocal || a.Auth.PasswordHash == "" {
		return ErrNotLocalAccount
	}
	return bcrypt.CompareHashAndPassword([]byte(a.Auth.PasswordHash), []byte(candidate))
}

func (a *Actor) HasAvatar() bool {
	return a.AvatarURL != nil && strings.TrimSpace(*a.AvatarURL) != ""
}
