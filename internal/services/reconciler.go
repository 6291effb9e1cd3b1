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

// CorrectionKind names the table a correction applies to.
type CorrectionKind string

const (
	CorrectionChainConfig  CorrectionKind = "chain_config"
	CorrectionTokenMapping CorrectionKind = "token_mapping"
)

// Correction is one pending config repair: the row to write and why.
type Correction struct {
	Kind    CorrectionKind       `json:"kind"`
	Reason  string               `json:"reason"`
	Chain   *models.ChainConfig  `json:"chain,omitempty"`
	Mapping *models.TokenMapping `json:"mapping,omitempty"`
}

// ExpectedState is the operator-declared source of truth the reconciler
// compares recorded configuration against.
type ExpectedState struct {
	Chains   []*models.ChainConfig  `json:"chains"`
	Mappings []*models.TokenMapping `json:"mappings"`
}

// ReconcilerService repairs configuration drift in two explicit steps: Diff
// computes the corrections without touching anything, Apply writes them.
// Nothing here rewrites rows on its own schedule; every repair is previewed
// and attributed.
type ReconcilerService struct {
	store     repository.Store
	publisher events.Publisher
}

func NewReconcilerService(store repository.Store, publisher events.Publisher) *ReconcilerService {
	return &ReconcilerService{store: store, publisher: publisher}
}

// Diff loads the recorded chain configs and mappings and returns the
// corrections that would bring them in line with expected. It never writes.
func (s *ReconcilerService) Diff(ctx context.Context, expected *ExpectedState) ([]*Correction, error) {
	currentChains, err := s.store.ListChainConfigs(ctx)
	if err != nil {
		return nil, err
	}
	currentMappings, err := s.store.ListMappings(ctx)
	if err != nil {
		return nil, err
	}
	return DiffState(currentChains, currentMappings, expected), nil
}

// DiffState is the pure comparison underneath Diff, usable directly in
// tests and tooling.
func DiffState(currentChains []*models.ChainConfig, currentMappings []*models.TokenMapping, expected *ExpectedState) []*Correction {
	var corrections []*Correction

	chainsByDomain := make(map[uint32]*models.ChainConfig, len(currentChains))
	for _, c := range currentChains {
		chainsByDomain[c.DomainID] = c
	}
	for _, want := range expected.Chains {
		have, ok := chainsByDomain[want.DomainID]
		if !ok {
			corrections = append(corrections, &Correction{
				Kind:   CorrectionChainConfig,
				Reason: fmt.Sprintf("domain %d is not registered", want.DomainID),
				Chain:  want,
			})
			continue
		}
		if !utils.SameAddress(have.Mailbox, want.Mailbox) {
			corrections = append(corrections, &Correction{
				Kind:   CorrectionChainConfig,
				Reason: fmt.Sprintf("domain %d mailbox is %s, expected %s", want.DomainID, have.Mailbox, want.Mailbox),
				Chain:  want,
			})
		} else if have.DisplayName != want.DisplayName && want.DisplayName != "" {
			corrections = append(corrections, &Correction{
				Kind:   CorrectionChainConfig,
				Reason: fmt.Sprintf("domain %d display name is %q, expected %q", want.DomainID, have.DisplayName, want.DisplayName),
				Chain:  want,
			})
		}
	}

	mappingsByKey := make(map[string]*models.TokenMapping, len(currentMappings))
	for _, m := range currentMappings {
		mappingsByKey[mappingKey(m)] = m
	}
	for _, want := range expected.Mappings {
		have, ok := mappingsByKey[mappingKey(want)]
		if !ok {
			corrections = append(corrections, &Correction{
				Kind:    CorrectionTokenMapping,
				Reason:  fmt.Sprintf("no mapping for %s from domain %d", want.SourceToken, want.SourceChainID),
				Mapping: want,
			})
			continue
		}
		if !utils.SameAddress(have.SyntheticToken, want.SyntheticToken) {
			corrections = append(corrections, &Correction{
				Kind:    CorrectionTokenMapping,
				Reason:  fmt.Sprintf("mapping for %s from domain %d points at %s, expected %s", want.SourceToken, want.SourceChainID, have.SyntheticToken, want.SyntheticToken),
				Mapping: want,
			})
		} else if have.SourceDecimals != want.SourceDecimals || have.SyntheticDecimals != want.SyntheticDecimals {
			corrections = append(corrections, &Correction{
				Kind:    CorrectionTokenMapping,
				Reason:  fmt.Sprintf("mapping for %s from domain %d has decimals %d/%d, expected %d/%d", want.SourceToken, want.SourceChainID, have.SourceDecimals, have.SyntheticDecimals, want.SourceDecimals, want.SyntheticDecimals),
				Mapping: want,
			})
		}
	}

	return corrections
}

func mappingKey(m *models.TokenMapping) string {
	return fmt.Sprintf("%d|%s|%d", m.SourceChainID, utils.MustNormalizeAddress(m.SourceToken), m.TargetChainID)
}

// Apply writes the given corrections in one transaction and emits a config
// event per row. Corrections normally come from a Diff the operator
// reviewed.
func (s *ReconcilerService) Apply(ctx context.Context, corrections []*Correction, appliedBy string) error {
	if len(corrections) == 0 {
		return nil
	}
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		for _, c := range corrections {
			switch c.Kind {
			case CorrectionChainConfig:
				if c.Chain == nil {
					return fmt.Errorf("chain_config correction without a chain row")
				}
				c.Chain.UpdatedBy = appliedBy
				if err := tx.UpsertChainConfig(ctx, c.Chain); err != nil {
					return err
				}
			case CorrectionTokenMapping:
				if c.Mapping == nil {
					return fmt.Errorf("token_mapping correction without a mapping row")
				}
				if err := tx.UpdateMapping(ctx, c.Mapping); err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						if err := tx.CreateMapping(ctx, c.Mapping); err != nil {
							return err
						}
						continue
					}
					return err
				}
			default:
				return fmt.Errorf("unknown correction kind %q", c.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, c := range corrections {
		logrus.WithFields(logrus.Fields{
			"kind":       c.Kind,
			"reason":     c.Reason,
			"applied_by": appliedBy,
		}).Warn("reconciliation correction applied")
		s.publisher.Publish(events.SubjectConfigUpdated, map[string]interface{}{
			"kind":       string(c.Kind),
			"reason":     c.Reason,
			"applied_by": appliedBy,
		})
	}
	return nil
}
