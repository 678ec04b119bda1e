package authtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCaseManager Role = "case_manager"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCaseManager:
		return RoleCaseManager, nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

type StaffClaims struct {
	jwt.RegisteredClaims

	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// Staff is the verified identity behind a request.
type Staff struct {
	ID        string
	Name      string
	Role      Role
	ExpiresAt time.Time
}

func (s Staff) IsAdmin() bool { return s.Role == RoleAdmin }

var ErrMissingToken = errors.New("missing token")

// Verify checks an HS256 staff session token against secret and audience, using now as the clock.
func Verify(tokenString, audience, secret string, now time.Time) (*Staff, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	if secret == "" {
		return nil, fmt.Errorf("missing token secret")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &StaffClaims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("missing subject")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}

	return &Staff{
		ID:        claims.Subject,
		Name:      claims.Name,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Issue signs a staff token. Used by dev tooling and tests; production tokens come from the identity provider.
func Issue(s Staff, audience, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: s.Name,
		Role: string(s.Role),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
