package repository

import (
	"context"
	"fmt"
	"math/big"

	"settlement-backend/internal/models"
	"settlement-backend/internal/utils"

	"gorm.io/gorm/clause"
)

func (s *gormStore) CreateSyntheticToken(ctx context.Context, token *models.SyntheticToken) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SyntheticToken{}).
		Where("address = ?", token.Address).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *gormStore) GetSyntheticToken(ctx context.Context, address string) (*models.SyntheticToken, error) {
	var token models.SyntheticToken
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&token).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &token, nil
}

func (s *gormStore) AdjustSupply(ctx context.Context, address string, delta *big.Int) error {
	var token models.SyntheticToken
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&token).Error
	if err != nil {
		return translateErr(err)
	}
	supply, err := utils.ParseAmount(token.TotalSupply)
	if err != nil {
		return fmt.Errorf("corrupt supply for token %s: %w", address, err)
	}
	supply.Add(supply, delta)
	if supply.Sign() < 0 {
		return ErrInsufficientBalance
	}
	token.TotalSupply = utils.FormatAmount(supply)
	return s.db.WithContext(ctx).Save(&token).Error
}

func (s *gormStore) ListSyntheticTokens(ctx context.Context) ([]*models.SyntheticToken, error) {
	var tokens []*models.SyntheticToken
	err := s.db.WithContext(ctx).Order("symbol").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
