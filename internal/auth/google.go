package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/findit/internal/errs"
	"google.golang.org/api/idtoken"
)

// GoogleProfile is the identity asserted by a verified Google ID token.
type GoogleProfile struct {
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier validates Google sign-in ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleProfile, error)
}

// IDTokenVerifier checks tokens against Google's public keys for one OAuth client ID.
type IDTokenVerifier struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewIDTokenVerifier constructs a verifier for clientID.
func NewIDTokenVerifier(clientID string) *IDTokenVerifier {
	return &IDTokenVerifier{audience: clientID, validate: idtoken.Validate}
}

// Verify validates signature, audience and expiry and extracts the profile claims.
func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (GoogleProfile, error) {
	if v.audience == "" {
		return GoogleProfile{}, errors.New("google sign-in is not configured")
	}
	p, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("%w: google token: %v", errs.ErrUnauthorized, err)
	}
	email, _ := p.Claims["email"].(string)
	if email == "" {
		return GoogleProfile{}, fmt.Errorf("%w: google token carries no email", errs.ErrUnauthorized)
	}
	if verified, ok := p.Claims["email_verified"].(bool); ok && !verified {
		return GoogleProfile{}, fmt.Errorf("%w: google email not verified", errs.ErrUnauthorized)
	}
	name, _ := p.Claims["name"].(string)
	picture, _ := p.Claims["picture"].(string)
	return GoogleProfile{Email: email, Name: name, Picture: picture}, nil
}
