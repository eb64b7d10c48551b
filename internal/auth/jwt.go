package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and validates share-session tokens. A token is handed
// out once the share link (and its password, if any) has been accepted.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a new token manager.
// secret must be at least 32 characters for HS256 security.
func NewTokenManager(secret string, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// sessionClaims carries the review session id as subject and the project it
// was opened for.
type sessionClaims struct {
	jwt.RegisteredClaims
	ProjectID string `json:"pid"`
}

// Issue creates a signed HS256 token for a review session.
func (m *TokenManager) Issue(sessionID string, projectID uuid.UUID) (string, error) {
	now := m.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ProjectID: projectID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Validate parses a session token and returns its session and project ids.
func (m *TokenManager) Validate(tokenString string) (string, uuid.UUID, error) {
	if tokenString == "" {
		return "", uuid.Nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		return "", uuid.Nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", uuid.Nil, fmt.Errorf("invalid token claims")
	}

	if claims.Issuer != m.issuer {
		return "", uuid.Nil, fmt.Errorf("invalid issuer: expected %s, got %s", m.issuer, claims.Issuer)
	}
	if claims.Subject == "" {
		return "", uuid.Nil, fmt.Errorf("missing subject")
	}

	projectID, err := uuid.Parse(claims.ProjectID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid project UUID: %w", err)
	}

	return claims.Subject, projectID, nil
}
