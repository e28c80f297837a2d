package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/mailer"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/transport"
)

func TestUserUpdate_RequiresPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")

	_, err := e.users.Update(ctx, u.ID, transport.UserUpdateRequest{
		UserPatch: transport.UserPatch{Name: ptr("Eva")},
		Password:  "nope",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := e.users.Update(ctx, u.ID, transport.UserUpdateRequest{
		UserPatch: transport.UserPatch{Speciality: ptr("Neurology")},
		Password:  "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	require.NotNil(t, got.Speciality)
	assert.Equal(t, "Neurology", *got.Speciality)

	_, err = e.users.Update(ctx, u.ID, transport.UserUpdateRequest{
		UserPatch: transport.UserPatch{Name: ptr("")},
		Password:  "pw",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.users.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")

	tests := []struct {
		name string
		req  transport.ChangePasswordRequest
		want error
	}{
		{"missing fields", transport.ChangePasswordRequest{OldPassword: "pw"}, ErrValidation},
		{"wrong old", transport.ChangePasswordRequest{OldPassword: "x", NewPassword: "n", VerifyNewPassword: "n"}, ErrInvalidCredentials},
		{"mismatch", transport.ChangePasswordRequest{OldPassword: "pw", NewPassword: "n", VerifyNewPassword: "m"}, ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, e.users.ChangePassword(ctx, u.ID, tt.req), tt.want)
		})
	}

	require.NoError(t, e.users.ChangePassword(ctx, u.ID, transport.ChangePasswordRequest{
		OldPassword: "pw", NewPassword: "fresh", VerifyNewPassword: "fresh",
	}))
	_, err := e.auth.Authenticate(ctx, "doc@example.com", "fresh")
	assert.NoError(t, err)
}

func TestUserDelete_Cascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")
	keep := e.register(t, "keep@example.com", "pw")
	ap := e.patient(t, u.ID, "12345678")
	kept := e.patient(t, keep.ID, "12345678")
	ae := e.evaluation(t, ap, models.ModalityCNN)
	_, err := e.evals.CreateMRIImage(ctx, ae, bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	_, err = e.auth.Login(ctx, "doc@example.com", "pw", "ua", "ip")
	require.NoError(t, err)

	require.NoError(t, e.users.Delete(ctx, u.ID))

	assert.Empty(t, e.blobs.keys())
	assert.Contains(t, e.index.removed, ap.Patient().ID)
	assert.NotContains(t, e.index.removed, kept.Patient().ID)
	assert.Contains(t, e.pub.types(), events.UserDeleted)

	_, err = e.users.Get(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.authz.Patient(ctx, keep.ID, kept.Patient().ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, e.users.Delete(ctx, u.ID), ErrNotFound)
}

func TestUserSendSupport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "doc@example.com", "pw")

	err := e.users.SendSupport(ctx, u.ID, transport.SupportRequest{Subject: "", Message: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, e.users.SendSupport(ctx, u.ID, transport.SupportRequest{Subject: "Help", Message: "Cannot upload"}))
	sent := e.mail.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "doc@example.com", sent[0].To)
	assert.Equal(t, "Help", sent[0].Subject)

	e.mail.err = mailer.ErrNotConfigured
	err = e.users.SendSupport(ctx, u.ID, transport.SupportRequest{Subject: "Help", Message: "again"})
	assert.ErrorIs(t, err, ErrConfiguration)
}
