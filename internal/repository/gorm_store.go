package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// gormStore is the Postgres-backed Store.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a GORM handle as a Store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Atomic runs fn inside one database transaction; any error rolls back
// every write fn made.
func (s *gormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
