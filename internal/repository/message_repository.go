package repository

import (
	"context"
	"errors"

	"settlement-backend/internal/models"

	"gorm.io/gorm"
)

func (s *gormStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ProcessedMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormStore) MarkProcessed(ctx context.Context, msg *models.ProcessedMessage) error {
	err := s.db.WithContext(ctx).Create(msg).Error
	// A concurrent redelivery losing the race is the same outcome as the
	// idempotency check firing: already processed.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *gormStore) CreateDispatchRecord(ctx context.Context, rec *models.DispatchRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *gormStore) FindDispatchByMessageID(ctx context.Context, messageID string) (*models.DispatchRecord, error) {
	var rec models.DispatchRecord
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).First(&rec).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func (s *gormStore) CreateSettlementRecord(ctx context.Context, rec *models.SettlementRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *gormStore) FindSettlementByMessageID(ctx context.Context, messageID string) (*models.SettlementRecord, error) {
	var rec models.SettlementRecord
	err := s.db.WithContext(ctx).Where("message_id = ?", messageID).First(&rec).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}
