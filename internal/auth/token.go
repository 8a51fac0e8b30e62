// Package auth issues and checks bearer tokens and logs users in.
package auth

import (
	"errors"
	"fmt"
	"time"

	"etender/internal/clock"
	"etender/internal/errs"
	"etender/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "etender"

// Claims carry the user id as subject and the role.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

func (i *Issuer) Issue(u models.User) (string, time.Time, error) {
	now := i.clock.Now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates the token and returns the actor it names.
func (i *Issuer) Parse(token string) (models.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return models.Actor{}, &errs.UnauthorizedError{Reason: "invalid or expired token"}
	}
	if claims.Subject == "" || !models.ValidRole(claims.Role) {
		return models.Actor{}, &errs.UnauthorizedError{Reason: "invalid token claims"}
	}
	return models.Actor{ID: claims.Subject, Role: claims.Role}, nil
}
