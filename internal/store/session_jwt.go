package store

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"donateabook/internal/domain"
)

// JWTSessionStore issues self-contained HS256 tokens carrying the session
// identity. Stateless: expiry is the only revocation, Delete is a no-op.
type JWTSessionStore struct {
	secret []byte
	ttl    time.Duration
}

type sessionClaims struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	jwt.RegisteredClaims
}

// NewJWTSessionStore builds a stateless signed-token session store.
func NewJWTSessionStore(secret string, ttl time.Duration) *JWTSessionStore {
	return &JWTSessionStore{secret: []byte(secret), ttl: ttl}
}

// Establish signs a token embedding the session identity.
func (s *JWTSessionStore) Establish(session domain.Session) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Email:     session.Email,
		FirstName: session.FirstName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Get validates the token signature and expiry and returns the identity.
// Invalid or expired tokens report found=false without error.
func (s *JWTSessionStore) Get(token string) (domain.Session, bool, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Session{}, false, nil
	}
	return domain.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		FirstName: claims.FirstName,
	}, true, nil
}

// Delete is a no-op for stateless tokens; provided for interface parity.
func (s *JWTSessionStore) Delete(_ string) error {
	return nil
}
