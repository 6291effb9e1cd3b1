package repository

import (
	"context"
	"errors"

	"settlement-backend/internal/models"

	"gorm.io/gorm"
)

func (s *gormStore) UpsertChainConfig(ctx context.Context, cfg *models.ChainConfig) error {
	var existing models.ChainConfig
	err := s.db.WithContext(ctx).Where("domain_id = ?", cfg.DomainID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg.Version = 1
		return s.db.WithContext(ctx).Create(cfg).Error
	}
	if err != nil {
		return err
	}
	existing.Mailbox = cfg.Mailbox
	existing.DisplayName = cfg.DisplayName
	existing.BlockTimeHintSec = cfg.BlockTimeHintSec
	existing.UpdatedBy = cfg.UpdatedBy
	existing.Version++
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*cfg = existing
	return nil
}

func (s *gormStore) GetChainConfig(ctx context.Context, domainID uint32) (*models.ChainConfig, error) {
	var cfg models.ChainConfig
	err := s.db.WithContext(ctx).Where("domain_id = ?", domainID).First(&cfg).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &cfg, nil
}

func (s *gormStore) ListChainConfigs(ctx context.Context) ([]*models.ChainConfig, error) {
	var configs []*models.ChainConfig
	err := s.db.WithContext(ctx).Order("domain_id").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *gormStore) GetLockerDestination(ctx context.Context, chainID uint32) (*models.LockerDestination, error) {
	var dest models.LockerDestination
	err := s.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&dest).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &dest, nil
}

func (s *gormStore) SetLockerDestination(ctx context.Context, dest *models.LockerDestination) error {
	var existing models.LockerDestination
	err := s.db.WithContext(ctx).Where("chain_id = ?", dest.ChainID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		dest.Version = 1
		return s.db.WithContext(ctx).Create(dest).Error
	}
	if err != nil {
		return err
	}
	existing.DestinationDomain = dest.DestinationDomain
	existing.SettlementManager = dest.SettlementManager
	existing.UpdatedBy = dest.UpdatedBy
	existing.Version++
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*dest = existing
	return nil
}

func (s *gormStore) GetChainBalanceManager(ctx context.Context, originDomain uint32) (*models.ChainBalanceManager, error) {
	var mgr models.ChainBalanceManager
	err := s.db.WithContext(ctx).Where("origin_domain = ?", originDomain).First(&mgr).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &mgr, nil
}

func (s *gormStore) SetChainBalanceManager(ctx context.Context, mgr *models.ChainBalanceManager) error {
	var existing models.ChainBalanceManager
	err := s.db.WithContext(ctx).Where("origin_domain = ?", mgr.OriginDomain).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(mgr).Error
	}
	if err != nil {
		return err
	}
	existing.LockerAddress = mgr.LockerAddress
	existing.UpdatedBy = mgr.UpdatedBy
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}
	*mgr = existing
	return nil
}

func (s *gormStore) ListChainBalanceManagers(ctx context.Context) ([]*models.ChainBalanceManager, error) {
	var managers []*models.ChainBalanceManager
	err := s.db.WithContext(ctx).Order("origin_domain").Find(&managers).Error
	if err != nil {
		return nil, err
	}
	return managers, nil
}

func (s *gormStore) AddLockerToken(ctx context.Context, token *models.LockerToken) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.LockerToken{}).
		Where("chain_id = ? AND token = ?", token.ChainID, token.Token).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *gormStore) RemoveLockerToken(ctx context.Context, chainID uint32, token string) error {
	result := s.db.WithContext(ctx).
		Where("chain_id = ? AND token = ?", chainID, token).
		Delete(&models.LockerToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) IsTokenWhitelisted(ctx context.Context, chainID uint32, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.LockerToken{}).
		Where("chain_id = ? AND token = ?", chainID, token).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormStore) ListLockerTokens(ctx context.Context, chainID uint32) ([]*models.LockerToken, error) {
	var tokens []*models.LockerToken
	err := s.db.WithContext(ctx).Where("chain_id = ?", chainID).Order("token").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
