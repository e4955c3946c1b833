package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/findit/internal/auth"
	pkgcrypto "github.com/and161185/findit/internal/crypto"
	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/limiter"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/notify"
	"github.com/and161185/findit/internal/repository"
)

// AuthService defines account creation and sign-in operations.
type AuthService interface {
	// Register creates an email/password account and signs it in.
	Register(ctx context.Context, email, password, fullName string) (model.Tokens, model.User, error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// LoginWithGoogle signs in with a Google ID token, creating the account on first use.
	LoginWithGoogle(ctx context.Context, idToken string) (model.Tokens, model.User, error)
	// ForgotPassword issues a short-lived reset code by email.
	ForgotPassword(ctx context.Context, email string) error
	// ResetPassword replaces the password if code matches the pending one.
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(p model.Principal) (model.Tokens, error)
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	google   auth.GoogleVerifier
	lim      limiter.Limiter
	notifier Notifier
	resetTTL time.Duration
	now      func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, google auth.GoogleVerifier,
	lim limiter.Limiter, notifier Notifier, resetTTL time.Duration) *AuthServiceImpl {
	if resetTTL <= 0 {
		resetTTL = 15 * time.Minute
	}
	return &AuthServiceImpl{
		users: users, tokens: tokens, google: google, lim: lim, notifier: notifier,
		resetTTL: resetTTL, now: time.Now,
	}
}

// Register hashes the password, stores the account and queues a welcome email.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, fullName string) (model.Tokens, model.User, error) {
	email, fullName = normEmail(email), strings.TrimSpace(fullName)
	if email == "" || password == "" || fullName == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: email, password and full name are required", errs.ErrInvalidInput)
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         model.RoleStudent,
		AuthProvider: model.ProviderEmail,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Tokens{}, model.User{}, fmt.Errorf("%w: email already registered", errs.ErrAlreadyExists)
		}
		return model.Tokens{}, model.User{}, err
	}

	tok, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	s.notifier.Enqueue(notify.Email{Kind: notify.KindWelcome, To: u.Email, Name: u.FullName})
	return tok, *u, nil
}

// LoginWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = normEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: too many failed logins, try again later", errs.ErrRateLimited)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || u.PasswordHash == "" || !pkgcrypto.VerifyPassword(password, u.PasswordHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, fmt.Errorf("%w: too many failed logins, try again later", errs.ErrRateLimited)
		}
		// unknown email, Google-only account and wrong password look the same
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: invalid email or password", errs.ErrUnauthorized)
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tok, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	s.notifier.Enqueue(notify.Email{Kind: notify.KindLoginAlert, To: u.Email, Name: u.FullName})
	return tok, *u, nil
}

// LoginWithGoogle verifies the ID token and upserts the Google account.
func (s *AuthServiceImpl) LoginWithGoogle(ctx context.Context, idToken string) (model.Tokens, model.User, error) {
	if idToken == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: token is required", errs.ErrInvalidInput)
	}
	p, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	u, err := s.users.UpsertGoogle(ctx, &model.User{
		Email:        normEmail(p.Email),
		FullName:     name,
		AvatarURL:    p.Picture,
		Role:         model.RoleStudent,
		AuthProvider: model.ProviderGoogle,
	})
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	tok, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

// ForgotPassword stores a 4-digit code valid for resetTTL and emails it.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normEmail(email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: no account with this email", errs.ErrNotFound)
		}
		return err
	}
	code, err := pkgcrypto.PIN()
	if err != nil {
		return err
	}
	if err := s.users.SetResetCode(ctx, u.ID, code, s.now().Add(s.resetTTL)); err != nil {
		return err
	}
	s.notifier.Enqueue(notify.Email{
		Kind:   notify.KindResetCode,
		To:     u.Email,
		Name:   u.FullName,
		Fields: map[string]string{"code": code},
	})
	return nil
}

// ResetPassword installs a new password hash when code is the pending, unexpired one.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if !pkgcrypto.IsFourDigits(code) {
		return fmt.Errorf("%w: code must be 4 digits", errs.ErrInvalidInput)
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", errs.ErrInvalidInput)
	}
	hash, err := pkgcrypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, normEmail(email), code, hash); err != nil {
		if errors.Is(err, errs.ErrInvalidCode) {
			return fmt.Errorf("%w: invalid or expired reset code", errs.ErrInvalidCode)
		}
		return err
	}
	return nil
}
