package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellicog/records/internal/dbtest"
	"github.com/intellicog/records/internal/models"
)

type userNamePatch struct {
	Name     *string
	LastName *string
}

func (p userNamePatch) Apply(u *models.User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
}

func seedUser(t *testing.T, r *GormRepo, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Ana", LastName: "Lopez", Email: email, Password: "hash"}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func TestUpdate_OnlyOverwritesSetFields(t *testing.T) {
	db := dbtest.Open(t)
	r := &GormRepo{DB: db}
	ctx := context.Background()
	u := seedUser(t, r, "ana@example.com")

	last := "Perez"
	updated, err := Update[models.User](ctx, db, u.ID, userNamePatch{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "Perez", updated.LastName)

	reloaded, err := Get[models.User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", reloaded.Name)
	assert.Equal(t, "Perez", reloaded.LastName)
	assert.Equal(t, "hash", reloaded.Password)
}

func TestCRUD_MissingIDs(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	_, err := Get[models.User](ctx, db, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Update[models.User](ctx, db, 99, userNamePatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, Delete[models.User](ctx, db, 99), ErrNotFound)
	assert.ErrorIs(t, DeleteByForeignKey[models.ClinicData](ctx, db, "evaluation_id", 99), ErrNotFound)

	_, err = GetByForeignKey[models.ClinicData](ctx, db, "evaluation_id", 99)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := AllByForeignKey[models.Patient](ctx, db, "user_id", 99)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	db := dbtest.Open(t)
	r := &GormRepo{DB: db}
	seedUser(t, r, "dup@example.com")

	err := r.CreateUser(context.Background(), &models.User{Name: "B", LastName: "C", Email: "dup@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDelete_HardDeletes(t *testing.T) {
	db := dbtest.Open(t)
	r := &GormRepo{DB: db}
	ctx := context.Background()
	u := seedUser(t, r, "gone@example.com")

	require.NoError(t, Delete[models.User](ctx, db, u.ID))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Count(&n).Error)
	assert.Zero(t, n)
}
