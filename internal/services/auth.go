package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"clinic-app-server/internal/mailer"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

const otpLength = 6

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized)

// AuthService handles accounts, sessions and email verification.
type AuthService struct{ *deps }

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput is the self-registration form. Self-registered accounts are patients.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// Register creates a patient account with its profile and mails a verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	token, err := utils.GenerateToken(32)
	if err != nil {
		return nil, err
	}
	expiry := s.now().Add(time.Duration(s.cfg.VerificationTokenExpiry) * time.Hour)
	user := &models.User{
		Email:                   strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:               in.FirstName,
		LastName:                in.LastName,
		PhoneNumber:             in.PhoneNumber,
		Role:                    models.RolePatient,
		VerificationToken:       token,
		VerificationTokenExpiry: &expiry,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("user with this email already exists: %w", err)
			}
			return err
		}
		return tx.Patients().Create(ctx, &models.Patient{UserID: user.ID})
	})
	if err != nil {
		return nil, err
	}

	s.send(mailer.VerificationEmail(user.Email, user.FullName(), s.verificationLink(token), s.cfg.VerificationTokenExpiry))
	return user, nil
}

func (s *AuthService) verificationLink(token string) string {
	return strings.TrimRight(s.cfg.AppURL, "/") + "/api/v1/auth/verify?token=" + url.QueryEscape(token)
}

// VerifyEmail confirms the address behind a verification link.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.Invalid("verification token is required")
	}
	var user *models.User
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.Users().GetByVerificationToken(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			return models.Invalid("verification link is invalid")
		}
		if err != nil {
			return err
		}
		if u.VerificationTokenExpiry != nil && s.now().After(*u.VerificationTokenExpiry) {
			return models.Invalid("verification link has expired")
		}
		u.IsVerified = true
		u.VerificationToken = ""
		u.VerificationTokenExpiry = nil
		user = u
		return tx.Users().Update(ctx, u)
	})
	return user, err
}

// Login checks the password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *models.User, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, errInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.CheckPassword(password) {
		return nil, nil, errInvalidCredentials
	}
	pair, err := s.issueTokens(ctx, s.store, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, st store.Store, user *models.User) (*TokenPair, error) {
	access, refresh, err := utils.GenerateTokens(user, s.cfg)
	if err != nil {
		return nil, err
	}
	rt := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: s.now().Add(utils.RefreshTokenTTL(s.cfg)),
	}
	if err := st.RefreshTokens().Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := utils.ValidateToken(refreshToken, s.cfg.JWTRefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", models.ErrUnauthorized)
	}

	var pair *TokenPair
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		stored, err := tx.RefreshTokens().GetByToken(ctx, refreshToken)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: refresh token not found", models.ErrUnauthorized)
		}
		if err != nil {
			return err
		}
		if stored.UserID != claims.UserID || !stored.Active(s.now()) {
			return fmt.Errorf("%w: refresh token expired or revoked", models.ErrUnauthorized)
		}
		user, err := tx.Users().GetByID(ctx, stored.UserID)
		if err != nil {
			return err
		}
		stored.IsRevoked = true
		if err := tx.RefreshTokens().Update(ctx, stored); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, user)
		return err
	})
	return pair, err
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.store.RefreshTokens().GetByToken(ctx, refreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.IsRevoked {
		return nil
	}
	stored.IsRevoked = true
	return s.store.RefreshTokens().Update(ctx, stored)
}

// Profile returns the actor's account.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}

// ProfileUpdate holds the account fields a user may change. Nil fields stay untouched.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}

// UpdateProfile changes the actor's own account.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfile(user, in)
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func applyProfile(u *models.User, in ProfileUpdate) {
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = *in.PhoneNumber
	}
}

// RequestOTP mails a one-time login code. Unknown addresses succeed silently so the
// endpoint cannot be used to probe accounts.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug().Str("email", email).Msg("otp requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := utils.GenerateOTP(otpLength)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	expires := s.now().Add(time.Duration(s.cfg.OTPExpiryMinutes) * time.Minute)
	user.OTPHash = string(hash)
	user.OTPExpiresAt = &expires
	user.OTPAttempts = 0
	if err := s.store.Users().Update(ctx, user); err != nil {
		return err
	}

	s.send(mailer.OTPEmail(user.Email, user.FullName(), code, s.cfg.OTPExpiryMinutes))
	return nil
}

// VerifyOTP checks a one-time code. A correct code verifies the email address and opens
// a session; wrong codes count against the attempt limit.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*TokenPair, *models.User, error) {
	var (
		pair *TokenPair
		user *models.User
	)
	invalid := fmt.Errorf("%w: invalid or expired code", models.ErrUnauthorized)
	var attemptErr error
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.Users().GetByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return invalid
		}
		if err != nil {
			return err
		}
		if u.OTPHash == "" || u.OTPExpiresAt == nil || !s.now().Before(*u.OTPExpiresAt) {
			return invalid
		}
		if u.OTPAttempts >= s.cfg.OTPMaxAttempts {
			return fmt.Errorf("%w: too many attempts, request a new code", models.ErrUnauthorized)
		}
		if bcrypt.CompareHashAndPassword([]byte(u.OTPHash), []byte(code)) != nil {
			u.OTPAttempts++
			if err := tx.Users().Update(ctx, u); err != nil {
				return err
			}
			// Commit the attempt counter but still reject.
			attemptErr = invalid
			return nil
		}
		u.OTPHash = ""
		u.OTPExpiresAt = nil
		u.OTPAttempts = 0
		u.IsVerified = true
		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		user = u
		pair, err = s.issueTokens(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if attemptErr != nil {
		return nil, nil, attemptErr
	}
	return pair, user, nil
}
