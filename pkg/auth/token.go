// Package auth issues and validates the session credentials shared by the
// REST API and the realtime handshake, and hashes account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tasksync/tasksync/pkg/models"
)

// ErrInvalidToken covers every validation failure: bad signature, wrong
// issuer or audience, expiry, malformed input. Callers treat all of them as
// "not logged in".
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the validated content of a session credential.
type Claims struct {
	UserID models.UserID
	Email  string
	// ExpiresAt is the credential's expiry instant.
	ExpiresAt time.Time
}

// Issuer mints and validates HS256-signed bearer tokens. The same Issuer
// instance (same key, issuer and audience) must serve both the mutation API
// and the realtime handshake so one credential works for both.
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewIssuer(key []byte, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		key:      key,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

// Issue mints a token bound to the user, expiring after the configured TTL.
func (i *Issuer) Issue(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"jti":   uuid.NewString(),
		"iss":   i.issuer,
		"aud":   i.audience,
		"iat":   time.Now().Unix(),
		"exp":   expiresAt.Unix(),
	})

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer, audience and expiry, and resolves the
// embedded user identity. Any failure returns ErrInvalidToken.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(
		tokenString,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return i.key, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, err := mapClaims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := models.ParseUserID(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	email, _ := mapClaims["email"].(string)

	return &Claims{
		UserID:    userID,
		Email:     email,
		ExpiresAt: exp.Time,
	}, nil
}
