package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/hash"
	"github.com/intellicog/records/pkg/logging"
	"github.com/intellicog/records/pkg/metrics"
	"github.com/intellicog/records/pkg/tokens"
)

type AuthService struct {
	Repo     *repo.GormRepo
	Sessions *repo.RefreshStore
	Tokens   *tokens.Codec
	Mailer   Mailer
	Events   events.Publisher
	Metrics  *metrics.Metrics

	AccessTTL    time.Duration
	RecoveryTTL  time.Duration
	ResetCodeTTL time.Duration

	Now func() time.Time
}

type LoginResult struct {
	User             *models.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (s *AuthService) now() time.Time { return clock(s.Now).now() }

// Authenticate checks email and password. An unknown email costs the same
// bcrypt work as a wrong password.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.Repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			hash.CheckMissing(password)
		}
		return nil, storeErr("user", err)
	}
	if !hash.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email := normalizeEmail(req.Email)
	switch {
	case strings.TrimSpace(req.Name) == "":
		return nil, validation("name is required")
	case strings.TrimSpace(req.LastName) == "":
		return nil, validation("last_name is required")
	case email == "":
		return nil, validation("email is required")
	case req.Password == "":
		return nil, validation("password is required")
	case req.Password != req.VerifyPassword:
		return nil, ErrPasswordMismatch
	}

	taken, err := s.Repo.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("hash_failed", "error", err)
		return nil, err
	}

	u := models.User{
		Name:       strings.TrimSpace(req.Name),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      email,
		Password:   hashed,
		Speciality: req.Speciality,
	}
	if err := s.Repo.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.Metrics.AuthEvent("register")
	publish(ctx, s.Events, events.Event{Type: events.UserRegistered, EntityID: u.ID, UserID: u.ID, At: s.now()})
	l.Info("user_registered", "user_id", u.ID)
	return &u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		s.Metrics.AuthEvent("login_failed")
		return nil, err
	}

	subject := strconv.FormatUint(uint64(u.ID), 10)
	access, err := s.Tokens.Issue(subject, tokens.KindAccess, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.Issue(subject, tokens.KindRefresh, s.Sessions.TTL)
	if err != nil {
		return nil, err
	}
	if _, err := s.Sessions.Record(ctx, u.ID, refresh.SessionID, refresh.Token, userAgent, ip); err != nil {
		l.Error("session_record_failed", "user_id", u.ID, "error", err)
		return nil, err
	}

	s.Metrics.AuthEvent("login")
	return &LoginResult{
		User:             u,
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Refresh issues a new access token for a live refresh session. The refresh
// token itself is returned to the client unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (*RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token missing", ErrUnauthenticated)
	}
	claims, err := s.Tokens.Verify(refreshToken, tokens.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	rt, err := s.Sessions.Validate(ctx, claims.SessionID(), userAgent, ip)
	if err != nil {
		l.Warn("refresh_rejected", "session", claims.SessionID(), "reason", err.Error())
		s.Metrics.AuthEvent("refresh_rejected")
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if strconv.FormatUint(uint64(rt.UserID), 10) != claims.Subject {
		return nil, fmt.Errorf("%w: session subject mismatch", ErrUnauthenticated)
	}

	access, err := s.Tokens.Issue(claims.Subject, tokens.KindAccess, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	s.Metrics.AuthEvent("refresh")
	return &RefreshResult{AccessToken: access.Token, ExpiresAt: access.ExpiresAt}, nil
}

// Logout revokes the refresh session carried by refreshToken. The session must
// belong to userID, the subject of the caller's access token.
func (s *AuthService) Logout(ctx context.Context, userID uint, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token missing", ErrUnauthenticated)
	}
	claims, err := s.Tokens.Verify(refreshToken, tokens.KindRefresh)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.Subject != strconv.FormatUint(uint64(userID), 10) {
		return fmt.Errorf("%w: session belongs to another user", ErrUnauthenticated)
	}
	if err := s.Sessions.Revoke(ctx, claims.SessionID()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: unknown session", ErrUnauthenticated)
		}
		return err
	}
	s.Metrics.AuthEvent("logout")
	return nil
}

// CreateRecoverPassword stores a fresh four digit code for the account and
// mails it to the owner.
func (s *AuthService) CreateRecoverPassword(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.recover")

	u, err := s.Repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return storeErr("user", err)
	}

	code, err := resetCode()
	if err != nil {
		return err
	}
	if err := s.Repo.CreateResetCode(ctx, u.ID, code, s.now().Add(s.ResetCodeTTL)); err != nil {
		return err
	}
	if err := s.Mailer.SendRecoveryCode(ctx, u.Email, u.Name, code, s.ResetCodeTTL); err != nil {
		l.Error("recovery_mail_failed", "user_id", u.ID, "error", err)
		return mailErr(err)
	}

	s.Metrics.AuthEvent("recovery_requested")
	return nil
}

// ConfirmRecoverPassword consumes a valid code and returns a recovery token
// that authorizes one ChangePassword call.
func (s *AuthService) ConfirmRecoverPassword(ctx context.Context, email, code string) (string, error) {
	u, err := s.Repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidOrExpiredCode
		}
		return "", err
	}

	issued, err := s.Tokens.IssueWithClaims(
		strconv.FormatUint(uint64(u.ID), 10),
		tokens.KindRecovery,
		map[string]string{"email": u.Email},
		s.RecoveryTTL,
	)
	if err != nil {
		return "", err
	}
	if err := s.Repo.ConsumeResetCode(ctx, u.ID, strings.TrimSpace(code), issued.SessionID, s.now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidOrExpiredCode
		}
		return "", err
	}
	return issued.Token, nil
}

// ChangePassword sets a new password with a recovery token. Each token can be
// spent once.
func (s *AuthService) ChangePassword(ctx context.Context, recoveryToken, password, verify string) error {
	claims, err := s.Tokens.Verify(recoveryToken, tokens.KindRecovery)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	userID, err := ParseSubject(claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if password == "" {
		return validation("new_password is required")
	}
	if password != verify {
		return ErrPasswordMismatch
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Repo.SpendRecovery(ctx, userID, claims.SessionID(), hashed, s.now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: recovery token already used", ErrUnauthenticated)
		}
		return err
	}
	s.Metrics.AuthEvent("password_changed")
	return nil
}

// ParseSubject reads a user id from a token subject.
func ParseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject %q", tokens.ErrMalformed, sub)
	}
	return uint(id), nil
}

func resetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
