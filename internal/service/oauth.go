package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

var (
	ErrGoogleAlreadyLinked = apperror.Conflict("google", "this Google account is already linked to another user")
	ErrGoogleNotLinked     = &apperror.AppError{Err: apperror.ErrNotFound, Message: "no account is linked to this Google account"}

	// ErrGoogleExchange wraps any failure to trade a callback code for a
	// Google identity. It is never a session problem on our side.
	ErrGoogleExchange = errors.New("google code exchange failed")
)

// GoogleExchanger is the part of auth.GoogleProvider the service needs.
type GoogleExchanger interface {
	Exchange(ctx context.Context, code string, flow auth.OAuthFlow) (*auth.GoogleUser, error)
}

// OAuthService links Google accounts to existing users and signs users in
// with a linked Google account. Google never creates accounts: every user
// starts with a verified student email.
type OAuthService struct {
	users    repository.UserRepository
	google   GoogleExchanger
	accounts *AuthService
	logger   *slog.Logger
}

func NewOAuthService(users repository.UserRepository, google GoogleExchanger, accounts *AuthService, logger *slog.Logger) *OAuthService {
	return &OAuthService{users: users, google: google, accounts: accounts, logger: logger}
}

// LinkGoogle attaches the Google account behind code to userID. Linking the
// same account twice is a no-op.
func (s *OAuthService) LinkGoogle(ctx context.Context, userID, code string) (*model.User, error) {
	user, err := s.accounts.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	g, err := s.google.Exchange(ctx, code, auth.FlowLink)
	if err != nil {
		return nil, fmt.Errorf("service/oauth: %w: %v", ErrGoogleExchange, err)
	}
	if user.GoogleID == g.Subject {
		return user, nil
	}

	owner, err := s.users.GetUserByGoogleID(ctx, g.Subject)
	switch {
	case err == nil && owner.ID != user.ID:
		return nil, ErrGoogleAlreadyLinked
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/oauth: looking up google owner: %w", err)
	}

	if err := s.users.LinkGoogle(ctx, user.ID, g.Subject, g.Email); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, ErrGoogleAlreadyLinked
		}
		return nil, fmt.Errorf("service/oauth: linking google to %s: %w", user.ID, err)
	}
	s.logger.Info("google account linked", slog.String("userID", user.ID))
	return s.accounts.CurrentUser(ctx, user.ID)
}

// LoginWithGoogle signs in the user whose linked Google account is behind
// code. OAuth sessions last as long as remember-me sessions.
func (s *OAuthService) LoginWithGoogle(ctx context.Context, code string) (*AuthResult, error) {
	g, err := s.google.Exchange(ctx, code, auth.FlowLogin)
	if err != nil {
		return nil, fmt.Errorf("service/oauth: %w: %v", ErrGoogleExchange, err)
	}
	user, err := s.users.GetUserByGoogleID(ctx, g.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrGoogleNotLinked
		}
		return nil, fmt.Errorf("service/oauth: looking up google user: %w", err)
	}
	if !user.Active {
		return nil, apperror.Forbidden("account is disabled")
	}
	s.logger.Info("user signed in with google", slog.String("userID", user.ID))
	return s.accounts.issue(user, s.accounts.cfg.RememberTTL)
}
