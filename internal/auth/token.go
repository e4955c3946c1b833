// Package auth issues and verifies bearer tokens and Google sign-in ID tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload.
type Claims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 access tokens.
type Issuer struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer constructs an Issuer. ttl bounds token lifetime.
func NewIssuer(signKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{signKey: signKey, ttl: ttl, now: time.Now}
}

// Issue creates a signed token for the principal.
func (i *Issuer) Issue(p model.Principal) (model.Tokens, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email:    p.Email,
		Role:     string(p.Role),
		FullName: p.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse verifies signature and expiry and returns the caller.
func (i *Issuer) Parse(token string) (model.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return model.Principal{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return model.Principal{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return model.Principal{
		ID:       id,
		Email:    claims.Email,
		Role:     model.Role(claims.Role),
		FullName: claims.FullName,
	}, nil
}
