package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// Mailer delivers login codes out of band.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	otp    *OTPStore
	mailer Mailer
}

// NewService constructs a new Service.
func NewService(repo Repository, otp *OTPStore, mailer Mailer) *Service {
	return &Service{repo: repo, otp: otp, mailer: mailer}
}

// StartLogin issues an OTP for an active account and hands it to the mailer.
// An unknown or deactivated email fails the same way as a known one so the
// endpoint cannot be used to enumerate accounts.
func (s *Service) StartLogin(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil || !user.IsActive {
		return nil
	}
	code, err := s.otp.Issue(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("auth: issue otp: %w", err)
	}
	if s.mailer != nil {
		if err := s.mailer.SendOTP(ctx, user.Email, code); err != nil {
			return fmt.Errorf("auth: deliver otp: %w", err)
		}
	}
	return nil
}

// VerifyLogin checks the submitted code and returns the account on success.
func (s *Service) VerifyLogin(ctx context.Context, email, code string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil || !user.IsActive {
		return nil, shared.AuthError("invalid code")
	}
	if err := s.otp.Verify(ctx, user.Email, code); err != nil {
		return nil, err
	}
	return user, nil
}

// CurrentUser resolves the account behind a session user id.
func (s *Service) CurrentUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
