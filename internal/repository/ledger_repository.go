package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"settlement-backend/internal/models"
	"settlement-backend/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *gormStore) LedgerBalances(ctx context.Context, user, syntheticToken string) (*big.Int, *big.Int, error) {
	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_address = ? AND synthetic_token = ?", user, syntheticToken).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), new(big.Int), nil
	}
	if err != nil {
		return nil, nil, err
	}
	available, err := utils.ParseAmount(entry.Available)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt available balance for %s/%s: %w", user, syntheticToken, err)
	}
	locked, err := utils.ParseAmount(entry.Locked)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt locked balance for %s/%s: %w", user, syntheticToken, err)
	}
	return available, locked, nil
}

func (s *gormStore) CreditAvailable(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	return s.adjustLedger(ctx, user, syntheticToken, amount, new(big.Int))
}

func (s *gormStore) DebitAvailable(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	return s.adjustLedger(ctx, user, syntheticToken, new(big.Int).Neg(amount), new(big.Int))
}

// LockBalance moves amount from available to locked; the sum is unchanged.
func (s *gormStore) LockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	return s.adjustLedger(ctx, user, syntheticToken, new(big.Int).Neg(amount), new(big.Int).Set(amount))
}

// UnlockBalance moves amount from locked back to available.
func (s *gormStore) UnlockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	return s.adjustLedger(ctx, user, syntheticToken, new(big.Int).Set(amount), new(big.Int).Neg(amount))
}

func (s *gormStore) adjustLedger(ctx context.Context, user, syntheticToken string, availableDelta, lockedDelta *big.Int) error {
	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_address = ? AND synthetic_token = ?", user, syntheticToken).
		First(&entry).Error
	created := false
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = models.LedgerEntry{User: user, SyntheticToken: syntheticToken, Available: "0", Locked: "0"}
		created = true
	} else if err != nil {
		return err
	}
	available, err := utils.ParseAmount(entry.Available)
	if err != nil {
		return fmt.Errorf("corrupt ledger entry for %s/%s: %w", user, syntheticToken, err)
	}
	locked, err := utils.ParseAmount(entry.Locked)
	if err != nil {
		return fmt.Errorf("corrupt ledger entry for %s/%s: %w", user, syntheticToken, err)
	}
	available.Add(available, availableDelta)
	locked.Add(locked, lockedDelta)
	if available.Sign() < 0 || locked.Sign() < 0 {
		return ErrInsufficientBalance
	}
	entry.Available = utils.FormatAmount(available)
	entry.Locked = utils.FormatAmount(locked)
	if created {
		return s.db.WithContext(ctx).Create(&entry).Error
	}
	return s.db.WithContext(ctx).Save(&entry).Error
}

func (s *gormStore) ListLedgerEntries(ctx context.Context, user string) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_address = ?", user).
		Order("synthetic_token").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
