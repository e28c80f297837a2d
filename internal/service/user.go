package service

import (
	"context"
	"errors"
	"strings"

	"github.com/intellicog/records/internal/blob"
	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
	"github.com/intellicog/records/internal/search"
	"github.com/intellicog/records/internal/transport"
	"github.com/intellicog/records/pkg/hash"
	"github.com/intellicog/records/pkg/logging"
)

type UserService struct {
	Repo   *repo.GormRepo
	Blobs  blob.Store
	Mailer Mailer
	Events events.Publisher
	Index  search.PatientIndex
}

func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.Repo.UserByID(ctx, userID)
	return u, storeErr("user", err)
}

// Update applies the profile patch once the current password is confirmed.
func (s *UserService) Update(ctx context.Context, userID uint, req transport.UserUpdateRequest) (*models.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !hash.CheckPassword(u.Password, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, validation("name must not be empty")
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) == "" {
		return nil, validation("last_name must not be empty")
	}

	out, err := repo.Update[models.User](ctx, s.Repo.DB, userID, req.UserPatch)
	return out, storeErr("user", err)
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, req transport.ChangePasswordRequest) error {
	if req.OldPassword == "" || req.NewPassword == "" || req.VerifyNewPassword == "" {
		return validation("old_password, new_password and verify_new_password are required")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !hash.CheckPassword(u.Password, req.OldPassword) {
		return ErrInvalidCredentials
	}
	if req.NewPassword != req.VerifyNewPassword {
		return ErrPasswordMismatch
	}

	hashed, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return storeErr("user", s.Repo.SetPassword(ctx, userID, hashed))
}

// Delete removes the account and everything it owns, then drops the stored
// MRI objects and index entries. Cleanup failures after the commit are logged.
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	l := logging.FromContext(ctx).With("svc", "user.delete")

	patients, err := s.Repo.PatientsByUser(ctx, userID)
	if err != nil {
		return err
	}
	keys, err := s.Repo.DeleteUserCascade(ctx, userID)
	if err != nil {
		return storeErr("user", err)
	}

	dropObjects(ctx, s.Blobs, keys)
	if s.Index != nil {
		for _, p := range patients {
			if err := s.Index.Remove(ctx, p.ID); err != nil {
				l.Warn("index_remove_failed", "patient_id", p.ID, "error", err)
			}
		}
	}
	publish(ctx, s.Events, events.Event{Type: events.UserDeleted, EntityID: userID, UserID: userID})
	l.Info("user_deleted", "user_id", userID, "patients", len(patients), "objects", len(keys))
	return nil
}

func (s *UserService) SendSupport(ctx context.Context, userID uint, req transport.SupportRequest) error {
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Message) == "" {
		return validation("subject and message are required")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	err = s.Mailer.SendSupport(ctx, u.Email, u.Name+" "+u.LastName, req.Subject, req.Message)
	if err != nil {
		logging.FromContext(ctx).Error("support_mail_failed", "svc", "user.support", "user_id", userID, "error", err)
		return mailErr(err)
	}
	return nil
}

func dropObjects(ctx context.Context, store blob.Store, keys []string) {
	if store == nil {
		return
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := store.Delete(ctx, k); err != nil && !errors.Is(err, context.Canceled) {
			logging.FromContext(ctx).Warn("object_delete_failed", "key", k, "error", err)
		}
	}
}
