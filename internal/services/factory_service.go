package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"settlement-backend/internal/models"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FactoryService creates synthetic tokens on the destination chain. Every
// token it creates has its decimals fixed for life and its mint/burn right
// bound exclusively to the settlement manager; the matching registry entry
// is written in the same transaction so token and mapping can never drift
// apart at creation time.
type FactoryService struct {
	store             repository.Store
	chainID           uint32 // destination chain the factory deploys on
	settlementManager string
}

func NewFactoryService(store repository.Store, chainID uint32, settlementManager string) *FactoryService {
	return &FactoryService{
		store:             store,
		chainID:           chainID,
		settlementManager: utils.MustNormalizeAddress(settlementManager),
	}
}

// CreateSyntheticTokenInput carries everything the factory needs; the
// target chain is the factory's own chain.
type CreateSyntheticTokenInput struct {
	SourceChainID     uint32
	SourceToken       string
	Name              string
	Symbol            string
	SourceDecimals    uint8
	SyntheticDecimals uint8
}

// CreateSyntheticToken deploys the token record and registers its mapping.
func (s *FactoryService) CreateSyntheticToken(ctx context.Context, input *CreateSyntheticTokenInput) (*models.SyntheticToken, error) {
	sourceToken, err := utils.NormalizeAddress(input.SourceToken)
	if err != nil {
		return nil, fmt.Errorf("source token: %w", err)
	}
	if input.Name == "" || input.Symbol == "" {
		return nil, fmt.Errorf("token name and symbol are required")
	}

	token := &models.SyntheticToken{
		ID:          uuid.New().String(),
		Address:     s.deriveAddress(input.SourceChainID, sourceToken),
		ChainID:     s.chainID,
		Name:        input.Name,
		Symbol:      input.Symbol,
		Decimals:    input.SyntheticDecimals,
		Minter:      s.settlementManager,
		TotalSupply: "0",
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.CreateSyntheticToken(ctx, token); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrTokenExists
			}
			return err
		}
		mapping := &models.TokenMapping{
			SourceChainID:     input.SourceChainID,
			SourceToken:       sourceToken,
			TargetChainID:     s.chainID,
			SyntheticToken:    token.Address,
			SourceDecimals:    input.SourceDecimals,
			SyntheticDecimals: input.SyntheticDecimals,
		}
		if err := tx.CreateMapping(ctx, mapping); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrMappingExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"token":        token.Address,
		"symbol":       token.Symbol,
		"decimals":     token.Decimals,
		"source_chain": input.SourceChainID,
		"source_token": sourceToken,
		"minter":       s.settlementManager,
	}).Info("synthetic token created")
	return token, nil
}

// deriveAddress computes a deterministic token address from the mapping
// key, so re-running setup against the same inputs cannot mint a second
// token for the same source asset.
func (s *FactoryService) deriveAddress(sourceChainID uint32, sourceToken string) string {
	buf := make([]byte, 0, 4+20+4+20)
	buf = binary.BigEndian.AppendUint32(buf, sourceChainID)
	buf = append(buf, common.HexToAddress(sourceToken).Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, s.chainID)
	buf = append(buf, common.HexToAddress(s.settlementManager).Bytes()...)
	hash := crypto.Keccak256(buf)
	return common.BytesToAddress(hash[12:]).Hex()
}
