package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/auth"
	"github.com/sakif/course-review/internal/mail"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

// Account limits.
const (
	MinNameLength      = 2
	MaxNameLength      = 50
	CodeTTL            = 10 * time.Minute
	ResetTTL           = time.Hour
	MaxCodeAttempts    = 5
	invalidCredentials = "invalid email or password"
)

// AuthConfig holds the account policies that come from configuration.
type AuthConfig struct {
	SessionTTL               time.Duration
	RememberTTL              time.Duration
	RequireEmailVerification bool
	// BaseURL prefixes the links in emails.
	BaseURL string
}

// AuthService handles registration, sign-in, profile changes, student
// email verification and password resets.
//
//	AuthHandler (HTTP) → AuthService → UserRepository / TokenRepository (DB)
//	                               ↘ TokenService (JWT), PasswordService (bcrypt), Mailer
type AuthService struct {
	users     repository.UserRepository
	codes     repository.TokenRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    mail.Mailer
	cfg       AuthConfig
	now       Clock
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	codes repository.TokenRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer mail.Mailer,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		codes:     codes,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued token so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token *auth.Token
}

// Session is the body returned to the client.
func (r *AuthResult) Session() model.Session {
	return model.Session{User: r.User.AuthUser(), SessionID: r.Token.SessionID, ExpiresAt: r.Token.ExpiresAt}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("name must be between %d and %d characters", MinNameLength, MaxNameLength))
	}
	return name, nil
}

func checkPassword(password string) error {
	if err := auth.CheckPolicy(password); err != nil {
		return apperror.ValidationFailed("password", strings.TrimPrefix(err.Error(), "auth: "))
	}
	return nil
}

func (s *AuthService) issue(user *model.User, ttl time.Duration) (*AuthResult, error) {
	tok, err := s.tokens.Issue(user.ID, ttl)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: tok}, nil
}

// ============================================================================
// Registration and sign-in
// ============================================================================

// Register creates a student account and signs it in. With
// RequireEmailVerification the email must have passed VerifyCode first;
// without it a prior verification still marks the account verified.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if !auth.IsStudentEmail(email) {
		return nil, apperror.ValidationFailed("email", "a Lingnan student email (@ln.hk or @ln.edu.hk) is required")
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	name, err := checkName(name)
	if err != nil {
		return nil, err
	}

	taken, err := s.users.NameTaken(ctx, name, "")
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking name: %w", err)
	}
	if taken {
		return nil, apperror.Conflict("user", "name already taken")
	}

	verified := false
	if v, err := s.codes.GetVerificationCode(ctx, email); err == nil {
		verified = v.Verified()
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: reading verification state: %w", err)
	}
	if s.cfg.RequireEmailVerification && !verified {
		return nil, apperror.ValidationFailed("email", "verify your student email before registering")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}
	user := &model.User{
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		EmailVerified: verified,
		Active:        true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	// A new account starts remembered, like a login with remember-me.
	s.logger.Info("user registered", slog.String("userID", user.ID), slog.Bool("verified", verified))
	return s.issue(user, s.cfg.RememberTTL)
}

// Login checks the password. Unknown email and wrong password give the same
// error so the response does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrSecretMismatch) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}
	if !user.Active {
		return nil, apperror.Forbidden("account is disabled")
	}

	ttl := s.cfg.SessionTTL
	if rememberMe {
		ttl = s.cfg.RememberTTL
	}
	s.logger.Info("user signed in", slog.String("userID", user.ID), slog.Bool("rememberMe", rememberMe))
	return s.issue(user, ttl)
}

// CurrentUser returns the signed-in user. A deleted or disabled account is
// Unauthorized so the client ends the session.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session user no longer exists")
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	if !user.Active {
		return nil, apperror.Unauthorized("account is disabled")
	}
	return user, nil
}

// ============================================================================
// Profile
// ============================================================================

func (s *AuthService) UpdateName(ctx context.Context, userID, name string) (*model.User, error) {
	name, err := checkName(name)
	if err != nil {
		return nil, err
	}
	taken, err := s.users.NameTaken(ctx, name, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking name: %w", err)
	}
	if taken {
		return nil, apperror.Conflict("user", "name already taken")
	}
	if err := s.users.UpdateUserName(ctx, userID, name); err != nil {
		return nil, fmt.Errorf("service/auth: renaming %s: %w", userID, err)
	}
	return s.CurrentUser(ctx, userID)
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrSecretMismatch) {
			return apperror.ValidationFailed("current_password", "current password is incorrect")
		}
		return fmt.Errorf("service/auth: verifying password: %w", err)
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: storing password: %w", err)
	}
	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// NameAvailable reports whether name is free. An invalid name is never
// available.
func (s *AuthService) NameAvailable(ctx context.Context, name string) (bool, error) {
	name, err := checkName(name)
	if err != nil {
		return false, nil
	}
	taken, err := s.users.NameTaken(ctx, name, "")
	if err != nil {
		return false, fmt.Errorf("service/auth: checking name: %w", err)
	}
	return !taken, nil
}

// ============================================================================
// Student email verification
// ============================================================================

// SendVerificationCode mails a fresh 6-digit code, replacing any pending one.
func (s *AuthService) SendVerificationCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !auth.IsStudentEmail(email) {
		return apperror.ValidationFailed("email", "a Lingnan student email (@ln.hk or @ln.edu.hk) is required")
	}
	code, err := auth.GenerateCode()
	if err != nil {
		return err
	}
	hash, err := s.passwords.Hash(code)
	if err != nil {
		return fmt.Errorf("service/auth: hashing code: %w", err)
	}
	if err := s.codes.SaveVerificationCode(ctx, &model.VerificationCode{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(CodeTTL),
	}); err != nil {
		return fmt.Errorf("service/auth: saving code: %w", err)
	}
	if err := s.mailer.Send(ctx, mail.VerificationCode(email, code, CodeTTL)); err != nil {
		return fmt.Errorf("service/auth: mailing code: %w", err)
	}
	return nil
}

// VerifyCode confirms the email. Each wrong guess counts; after
// MaxCodeAttempts the code is dead and a new one must be requested.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	v, err := s.codes.GetVerificationCode(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("code", "no verification code was requested for this email")
		}
		return fmt.Errorf("service/auth: reading code: %w", err)
	}
	if v.Verified() {
		return nil
	}
	if !s.now().Before(v.ExpiresAt) {
		return apperror.ValidationFailed("code", "verification code has expired")
	}
	if v.Attempts >= MaxCodeAttempts {
		return apperror.ValidationFailed("code", "too many attempts, request a new code")
	}
	if err := s.passwords.Verify(v.CodeHash, strings.TrimSpace(code)); err != nil {
		if incErr := s.codes.IncrementVerificationAttempts(ctx, email); incErr != nil {
			return fmt.Errorf("service/auth: counting attempt: %w", incErr)
		}
		if errors.Is(err, auth.ErrSecretMismatch) {
			return apperror.ValidationFailed("code", "verification code is incorrect")
		}
		return fmt.Errorf("service/auth: checking code: %w", err)
	}
	if err := s.codes.MarkEmailVerified(ctx, email, s.now()); err != nil {
		return fmt.Errorf("service/auth: marking verified: %w", err)
	}

	// An existing account with this email becomes verified too.
	if user, err := s.users.GetUserByEmail(ctx, email); err == nil {
		if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("service/auth: verifying user %s: %w", user.ID, err)
		}
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/auth: looking up user: %w", err)
	}
	s.logger.Info("student email verified", slog.String("email", email))
	return nil
}

// ============================================================================
// Password reset
// ============================================================================

// RequestPasswordReset mails a reset link. It returns nil for unknown
// emails so the endpoint cannot be used to discover accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Debug("password reset for unknown email")
			return nil
		}
		return fmt.Errorf("service/auth: looking up user: %w", err)
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return err
	}
	hash, err := s.passwords.Hash(secret)
	if err != nil {
		return fmt.Errorf("service/auth: hashing reset secret: %w", err)
	}
	if err := s.codes.CreatePasswordReset(ctx, &model.PasswordReset{
		UserID:     user.ID,
		SecretHash: hash,
		ExpiresAt:  s.now().Add(ResetTTL),
	}); err != nil {
		return fmt.Errorf("service/auth: storing reset: %w", err)
	}
	if err := s.mailer.Send(ctx, mail.PasswordReset(user.Email, s.cfg.BaseURL, user.ID, secret, ResetTTL)); err != nil {
		return fmt.Errorf("service/auth: mailing reset link: %w", err)
	}
	return nil
}

// usableReset returns the newest reset of userID if secret opens it.
func (s *AuthService) usableReset(ctx context.Context, userID, secret string) (*model.PasswordReset, error) {
	if userID == "" || secret == "" {
		return nil, nil
	}
	reset, err := s.codes.LatestPasswordReset(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: reading reset: %w", err)
	}
	if !reset.Usable(s.now()) {
		return nil, nil
	}
	if err := s.passwords.Verify(reset.SecretHash, secret); err != nil {
		if errors.Is(err, auth.ErrSecretMismatch) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: checking reset secret: %w", err)
	}
	return reset, nil
}

// ValidatePasswordReset reports whether the link can still be used. Only
// the newest link of a user is valid.
func (s *AuthService) ValidatePasswordReset(ctx context.Context, userID, secret string) (bool, error) {
	reset, err := s.usableReset(ctx, userID, secret)
	return reset != nil, err
}

func (s *AuthService) CompletePasswordReset(ctx context.Context, userID, secret, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	reset, err := s.usableReset(ctx, userID, secret)
	if err != nil {
		return err
	}
	if reset == nil {
		return apperror.ValidationFailed("secret", "reset link is invalid or has expired")
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.codes.MarkPasswordResetUsed(ctx, reset.ID, s.now()); err != nil {
		return fmt.Errorf("service/auth: consuming reset: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: storing password: %w", err)
	}
	s.logger.Info("password reset completed", slog.String("userID", userID))
	return nil
}
