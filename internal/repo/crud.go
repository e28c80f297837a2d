package repo

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Patch merges explicitly set fields into a loaded record.
type Patch[T any] interface {
	Apply(*T)
}

func Create[T any](ctx context.Context, db *gorm.DB, rec *T) error {
	return translate(db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error)
}

func Get[T any](ctx context.Context, db *gorm.DB, id uint) (*T, error) {
	var rec T
	if err := db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func Update[T any](ctx context.Context, db *gorm.DB, id uint, p Patch[T]) (*T, error) {
	rec, err := Get[T](ctx, db, id)
	if err != nil {
		return nil, err
	}
	p.Apply(rec)
	if err := db.WithContext(ctx).Omit(clause.Associations).Save(rec).Error; err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

func Delete[T any](ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(new(T), id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func GetByForeignKey[T any](ctx context.Context, db *gorm.DB, column string, value any) (*T, error) {
	var rec T
	if err := db.WithContext(ctx).Where(fkClause(column), value).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func AllByForeignKey[T any](ctx context.Context, db *gorm.DB, column string, value any) ([]T, error) {
	out := make([]T, 0)
	if err := db.WithContext(ctx).Where(fkClause(column), value).Order("id ASC").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// UpdateByForeignKey patches the single row whose column equals value.
func UpdateByForeignKey[T any](ctx context.Context, db *gorm.DB, column string, value any, p Patch[T]) (*T, error) {
	rec, err := GetByForeignKey[T](ctx, db, column, value)
	if err != nil {
		return nil, err
	}
	p.Apply(rec)
	if err := db.WithContext(ctx).Omit(clause.Associations).Save(rec).Error; err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

func DeleteByForeignKey[T any](ctx context.Context, db *gorm.DB, column string, value any) error {
	res := db.WithContext(ctx).Where(fkClause(column), value).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func fkClause(column string) string {
	return pq.QuoteIdentifier(column) + " = ?"
}
