package authUtils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var ErrInvalidToken = errors.New("invalid authorization token")

// Claims is what a session token vouches for.
type Claims struct {
	UserID string
	Email  string
	Roles  []string
}

// GenerateToken signs an HS256 token for the actor that expires after ttl.
func GenerateToken(c Claims, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret is not set")
	}
	roles := make([]interface{}, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, r)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": c.UserID,
		"email":   c.Email,
		"roles":   roles,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, _ := mc["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	email, _ := mc["email"].(string)
	out := &Claims{UserID: userID, Email: email}
	if raw, ok := mc["roles"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				out.Roles = append(out.Roles, s)
			}
		}
	}
	return out, nil
}

// HasRole reports whether any of want is among the token's roles.
func (c *Claims) HasRole(want ...string) bool {
	for _, have := range c.Roles {
		for _, w := range want {
			if have == w {
				return true
			}
		}
	}
	return false
}
