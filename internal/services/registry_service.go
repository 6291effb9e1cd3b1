// Package services holds the settlement business logic: the token mapping
// registry, the synthetic token factory, the balance locker and the
// settlement manager.
package services

import (
	"context"
	"errors"
	"fmt"

	"settlement-backend/internal/events"
	"settlement-backend/internal/models"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/utils"

	"github.com/sirupsen/logrus"
)

// RegistryService is the token mapping registry: pure data relating a
// source-chain token to its synthetic representation, plus the decimal
// conventions on both sides.
type RegistryService struct {
	store     repository.Store
	publisher events.Publisher
}

func NewRegistryService(store repository.Store, publisher events.Publisher) *RegistryService {
	return &RegistryService{store: store, publisher: publisher}
}

// RegisterMapping creates a mapping. An existing key is ErrMappingExists;
// accidental overwrites by racing setup scripts were a real failure mode,
// so overwriting is only possible through UpdateMapping.
func (s *RegistryService) RegisterMapping(ctx context.Context, m *models.TokenMapping) error {
	if err := s.normalize(m); err != nil {
		return err
	}
	if err := s.checkTokenDecimals(ctx, m); err != nil {
		return err
	}
	if err := s.store.CreateMapping(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrMappingExists
		}
		return err
	}
	logrus.WithFields(logrus.Fields{
		"source_chain":    m.SourceChainID,
		"source_token":    m.SourceToken,
		"target_chain":    m.TargetChainID,
		"synthetic_token": m.SyntheticToken,
	}).Info("token mapping registered")
	return nil
}

// UpdateMapping is the explicit overwrite path. The emitted event carries
// the previous and new synthetic token for audit.
func (s *RegistryService) UpdateMapping(ctx context.Context, m *models.TokenMapping, updatedBy string) error {
	if err := s.normalize(m); err != nil {
		return err
	}
	if err := s.checkTokenDecimals(ctx, m); err != nil {
		return err
	}
	old, err := s.store.GetMapping(ctx, m.SourceChainID, m.SourceToken, m.TargetChainID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMappingNotFound
		}
		return err
	}
	if err := s.store.UpdateMapping(ctx, m); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"source_chain":        m.SourceChainID,
		"source_token":        m.SourceToken,
		"target_chain":        m.TargetChainID,
		"old_synthetic_token": old.SyntheticToken,
		"new_synthetic_token": m.SyntheticToken,
		"updated_by":          updatedBy,
	}).Warn("token mapping updated")
	s.publisher.Publish(events.SubjectMappingUpdated, map[string]interface{}{
		"source_chain":        m.SourceChainID,
		"source_token":        m.SourceToken,
		"target_chain":        m.TargetChainID,
		"old_synthetic_token": old.SyntheticToken,
		"new_synthetic_token": m.SyntheticToken,
		"updated_by":          updatedBy,
	})
	return nil
}

func (s *RegistryService) GetMapping(ctx context.Context, sourceChainID uint32, sourceToken string, targetChainID uint32) (*models.TokenMapping, error) {
	normalized, err := utils.NormalizeAddress(sourceToken)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMapping(ctx, sourceChainID, normalized, targetChainID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMappingNotFound
	}
	return m, err
}

// GetReverseMapping resolves which source chain and token a synthetic token
// settles back to; withdrawals cannot route without it.
func (s *RegistryService) GetReverseMapping(ctx context.Context, syntheticToken string, targetChainID uint32) (*models.TokenMapping, error) {
	normalized, err := utils.NormalizeAddress(syntheticToken)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetReverseMapping(ctx, normalized, targetChainID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMappingNotFound
	}
	return m, err
}

func (s *RegistryService) ListMappings(ctx context.Context) ([]*models.TokenMapping, error) {
	return s.store.ListMappings(ctx)
}

func (s *RegistryService) normalize(m *models.TokenMapping) error {
	sourceToken, err := utils.NormalizeAddress(m.SourceToken)
	if err != nil {
		return fmt.Errorf("source token: %w", err)
	}
	syntheticToken, err := utils.NormalizeAddress(m.SyntheticToken)
	if err != nil {
		return fmt.Errorf("synthetic token: %w", err)
	}
	m.SourceToken = sourceToken
	m.SyntheticToken = syntheticToken
	return nil
}

// checkTokenDecimals enforces the invariant that the mapping's recorded
// synthetic decimals equal the token's actual decimals. Decimal drift
// between the two is the bug class behind historic mis-credits.
func (s *RegistryService) checkTokenDecimals(ctx context.Context, m *models.TokenMapping) error {
	token, err := s.store.GetSyntheticToken(ctx, m.SyntheticToken)
	if errors.Is(err, repository.ErrNotFound) {
		// Mapping may be registered before its token row in bootstrap
		// flows; the factory path always creates the token first.
		return nil
	}
	if err != nil {
		return err
	}
	if token.Decimals != m.SyntheticDecimals {
		return fmt.Errorf("%w: token %s has %d decimals, mapping says %d",
			ErrDecimalsMismatch, m.SyntheticToken, token.Decimals, m.SyntheticDecimals)
	}
	return nil
}
