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

func (s *gormStore) AccountBalance(ctx context.Context, chainID uint32, token, holder string) (*big.Int, error) {
	var account models.TokenAccount
	err := s.db.WithContext(ctx).
		Where("chain_id = ? AND token = ? AND holder = ?", chainID, token, holder).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return utils.ParseAmount(account.Balance)
}

func (s *gormStore) CreditAccount(ctx context.Context, chainID uint32, token, holder string, amount *big.Int) error {
	return s.adjustAccount(ctx, chainID, token, holder, amount, false)
}

func (s *gormStore) DebitAccount(ctx context.Context, chainID uint32, token, holder string, amount *big.Int) error {
	return s.adjustAccount(ctx, chainID, token, holder, new(big.Int).Neg(amount), true)
}

// adjustAccount is a read-modify-write on the balance string; callers run
// inside Atomic and the row is locked FOR UPDATE, so concurrent API calls
// serialize per account the way chain transactions would.
func (s *gormStore) adjustAccount(ctx context.Context, chainID uint32, token, holder string, delta *big.Int, debit bool) error {
	var account models.TokenAccount
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("chain_id = ? AND token = ? AND holder = ?", chainID, token, holder).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if debit {
			return ErrInsufficientBalance
		}
		account = models.TokenAccount{
			ChainID: chainID,
			Token:   token,
			Holder:  holder,
			Balance: utils.FormatAmount(delta),
		}
		return s.db.WithContext(ctx).Create(&account).Error
	}
	if err != nil {
		return err
	}
	balance, err := utils.ParseAmount(account.Balance)
	if err != nil {
		return fmt.Errorf("corrupt balance for %s/%s on chain %d: %w", token, holder, chainID, err)
	}
	balance.Add(balance, delta)
	if balance.Sign() < 0 {
		return ErrInsufficientBalance
	}
	account.Balance = utils.FormatAmount(balance)
	return s.db.WithContext(ctx).Save(&account).Error
}

func (s *gormStore) NextUserNonce(ctx context.Context, chainID uint32, user string) (uint64, error) {
	var nonce models.UserNonce
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("chain_id = ? AND user_address = ?", chainID, user).
		First(&nonce).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		nonce = models.UserNonce{ChainID: chainID, User: user, Nonce: 1}
		if err := s.db.WithContext(ctx).Create(&nonce).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	nonce.Nonce++
	if err := s.db.WithContext(ctx).Save(&nonce).Error; err != nil {
		return 0, err
	}
	return nonce.Nonce, nil
}
