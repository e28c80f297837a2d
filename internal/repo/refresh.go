package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/intellicog/records/internal/models"
)

var (
	ErrRevoked        = errors.New("refresh session revoked")
	ErrExpired        = errors.New("refresh session expired")
	ErrDeviceMismatch = errors.New("refresh session used from another device")
)

// RefreshStore tracks issued refresh sessions by their jti.
type RefreshStore struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

func (s *RefreshStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (s *RefreshStore) Record(ctx context.Context, userID uint, sessionID, token, userAgent, ip string) (*models.RefreshToken, error) {
	now := s.now()
	rt := models.RefreshToken{
		UserID:    userID,
		Token:     Sha256Hex(token),
		JTI:       sessionID,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: now.Add(s.TTL),
		CreatedAt: now,
	}
	if err := Create(ctx, s.DB, &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *RefreshStore) Find(ctx context.Context, sessionID string) (*models.RefreshToken, error) {
	return GetByForeignKey[models.RefreshToken](ctx, s.DB, "jti", sessionID)
}

// Validate checks, in order: presence, revocation, expiry and device binding.
// An expired session is revoked as a side effect.
func (s *RefreshStore) Validate(ctx context.Context, sessionID, userAgent, ip string) (*models.RefreshToken, error) {
	rt, err := s.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rt.Revoked {
		return nil, ErrRevoked
	}
	if !s.now().Before(rt.ExpiresAt) {
		if err := s.Revoke(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	if rt.UserAgent != userAgent || rt.IPAddress != ip {
		return nil, ErrDeviceMismatch
	}
	return rt, nil
}

func (s *RefreshStore) Revoke(ctx context.Context, sessionID string) error {
	res := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("jti = ?", sessionID).
		Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
