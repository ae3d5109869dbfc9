package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers malformed, expired, or mis-signed tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenIssuer signs and verifies the access/refresh token pair. Access and
// refresh tokens use separate secrets so a leaked refresh secret cannot mint
// access tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer builds a TokenIssuer.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: token secrets must be provided")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// RefreshTTL exposes the refresh token lifetime for store expiry.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccess signs a short-lived access token for the user.
func (t *TokenIssuer) IssueAccess(userID uuid.UUID) (string, error) {
	return t.sign(t.accessSecret, userID, uuid.NewString(), t.accessTTL)
}

// IssueRefresh signs a refresh token. The returned token ID is registered in
// the refresh store so the token can be revoked before expiry.
func (t *TokenIssuer) IssueRefresh(userID uuid.UUID) (token string, tokenID string, err error) {
	tokenID = uuid.NewString()
	token, err = t.sign(t.refreshSecret, userID, tokenID, t.refreshTTL)
	return token, tokenID, err
}

// ParseAccess verifies an access token and returns the subject user ID.
func (t *TokenIssuer) ParseAccess(token string) (uuid.UUID, error) {
	claims, err := t.parse(t.accessSecret, token)
	if err != nil {
		return uuid.Nil, err
	}
	return parseSubject(claims)
}

// ParseRefresh verifies a refresh token and returns the subject user ID and
// the token ID used for revocation.
func (t *TokenIssuer) ParseRefresh(token string) (uuid.UUID, string, error) {
	claims, err := t.parse(t.refreshSecret, token)
	if err != nil {
		return uuid.Nil, "", err
	}
	userID, err := parseSubject(claims)
	if err != nil {
		return uuid.Nil, "", err
	}
	return userID, claims.ID, nil
}

func (t *TokenIssuer) sign(secret []byte, userID uuid.UUID, tokenID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(secret []byte, raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parseSubject(claims *jwt.RegisteredClaims) (uuid.UUID, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}
