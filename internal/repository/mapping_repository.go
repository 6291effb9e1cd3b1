package repository

import (
	"context"

	"settlement-backend/internal/models"
)

func (s *gormStore) CreateMapping(ctx context.Context, m *models.TokenMapping) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TokenMapping{}).
		Where("source_chain_id = ? AND source_token = ? AND target_chain_id = ?",
			m.SourceChainID, m.SourceToken, m.TargetChainID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *gormStore) UpdateMapping(ctx context.Context, m *models.TokenMapping) error {
	var existing models.TokenMapping
	err := s.db.WithContext(ctx).
		Where("source_chain_id = ? AND source_token = ? AND target_chain_id = ?",
			m.SourceChainID, m.SourceToken, m.TargetChainID).
		First(&existing).Error
	if err != nil {
		return translateErr(err)
	}
	existing.SyntheticToken = m.SyntheticToken
	existing.SourceDecimals = m.SourceDecimals
	existing.SyntheticDecimals = m.SyntheticDecimals
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *gormStore) GetMapping(ctx context.Context, sourceChainID uint32, sourceToken string, targetChainID uint32) (*models.TokenMapping, error) {
	var m models.TokenMapping
	err := s.db.WithContext(ctx).
		Where("source_chain_id = ? AND source_token = ? AND target_chain_id = ?",
			sourceChainID, sourceToken, targetChainID).
		First(&m).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

func (s *gormStore) GetReverseMapping(ctx context.Context, syntheticToken string, targetChainID uint32) (*models.TokenMapping, error) {
	var m models.TokenMapping
	err := s.db.WithContext(ctx).
		Where("synthetic_token = ? AND target_chain_id = ?", syntheticToken, targetChainID).
		First(&m).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

func (s *gormStore) ListMappings(ctx context.Context) ([]*models.TokenMapping, error) {
	var mappings []*models.TokenMapping
	err := s.db.WithContext(ctx).Order("source_chain_id, source_token").Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}
