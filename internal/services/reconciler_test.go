package services

import (
	"context"
	"testing"

	"settlement-backend/internal/events"
	"settlement-backend/internal/models"
	"settlement-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

const reconMailbox = "0x7777777777777777777777777777777777777777"

func TestDiffStateEmpty(t *testing.T) {
	require.Empty(t, DiffState(nil, nil, &ExpectedState{}))
}

func TestDiffStateChains(t *testing.T) {
	current := []*models.ChainConfig{
		{DomainID: 1, Mailbox: reconMailbox, DisplayName: "Ethereum"},
	}

	// Domain 1 matches, domain 56 is missing.
	expected := &ExpectedState{Chains: []*models.ChainConfig{
		{DomainID: 1, Mailbox: reconMailbox, DisplayName: "Ethereum"},
		{DomainID: 56, Mailbox: reconMailbox, DisplayName: "BSC"},
	}}
	corrections := DiffState(current, nil, expected)
	require.Len(t, corrections, 1)
	require.Equal(t, CorrectionChainConfig, corrections[0].Kind)
	require.Equal(t, uint32(56), corrections[0].Chain.DomainID)

	// Mailbox drift on a known domain.
	expected = &ExpectedState{Chains: []*models.ChainConfig{
		{DomainID: 1, Mailbox: "0x8888888888888888888888888888888888888888", DisplayName: "Ethereum"},
	}}
	corrections = DiffState(current, nil, expected)
	require.Len(t, corrections, 1)
	require.Contains(t, corrections[0].Reason, "mailbox")

	// Display name drift alone is also flagged.
	expected = &ExpectedState{Chains: []*models.ChainConfig{
		{DomainID: 1, Mailbox: reconMailbox, DisplayName: "Ethereum Mainnet"},
	}}
	corrections = DiffState(current, nil, expected)
	require.Len(t, corrections, 1)
	require.Contains(t, corrections[0].Reason, "display name")
}

func TestDiffStateMappings(t *testing.T) {
	current := []*models.TokenMapping{
		{SourceChainID: 1, SourceToken: sourceTokenAddr, TargetChainID: 42161, SyntheticToken: synTokenAddr, SourceDecimals: 6, SyntheticDecimals: 18},
	}

	// Exact match produces nothing.
	expected := &ExpectedState{Mappings: []*models.TokenMapping{
		{SourceChainID: 1, SourceToken: sourceTokenAddr, TargetChainID: 42161, SyntheticToken: synTokenAddr, SourceDecimals: 6, SyntheticDecimals: 18},
	}}
	require.Empty(t, DiffState(nil, current, expected))

	// Wrong synthetic token.
	expected.Mappings[0].SyntheticToken = otherSynAddr
	corrections := DiffState(nil, current, expected)
	require.Len(t, corrections, 1)
	require.Equal(t, CorrectionTokenMapping, corrections[0].Kind)
	require.Contains(t, corrections[0].Reason, "points at")

	// Wrong decimals.
	expected.Mappings[0].SyntheticToken = synTokenAddr
	expected.Mappings[0].SyntheticDecimals = 6
	corrections = DiffState(nil, current, expected)
	require.Len(t, corrections, 1)
	require.Contains(t, corrections[0].Reason, "decimals")

	// Missing mapping.
	expected.Mappings[0].SyntheticDecimals = 18
	expected.Mappings[0].SourceChainID = 56
	corrections = DiffState(nil, current, expected)
	require.Len(t, corrections, 1)
	require.Contains(t, corrections[0].Reason, "no mapping")
}

func TestReconcilerDiffAndApply(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	reconciler := NewReconcilerService(store, events.NoopPublisher{})

	require.NoError(t, store.UpsertChainConfig(ctx, &models.ChainConfig{
		DomainID: 1, Mailbox: reconMailbox, DisplayName: "Ethereum", UpdatedBy: "startup",
	}))

	expected := &ExpectedState{
		Chains: []*models.ChainConfig{
			{DomainID: 1, Mailbox: reconMailbox, DisplayName: "Ethereum"},
			{DomainID: 42161, Mailbox: reconMailbox, DisplayName: "Arbitrum"},
		},
		Mappings: []*models.TokenMapping{
			{SourceChainID: 1, SourceToken: sourceTokenAddr, TargetChainID: 42161, SyntheticToken: synTokenAddr, SourceDecimals: 6, SyntheticDecimals: 18},
		},
	}

	corrections, err := reconciler.Diff(ctx, expected)
	require.NoError(t, err)
	require.Len(t, corrections, 2)

	// Diff alone writes nothing.
	_, err = store.GetChainConfig(ctx, 42161)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, reconciler.Apply(ctx, corrections, "ops"))

	chain, err := store.GetChainConfig(ctx, 42161)
	require.NoError(t, err)
	require.Equal(t, "Arbitrum", chain.DisplayName)
	require.Equal(t, "ops", chain.UpdatedBy)

	mapping, err := store.GetMapping(ctx, 1, sourceTokenAddr, 42161)
	require.NoError(t, err)
	require.Equal(t, synTokenAddr, mapping.SyntheticToken)

	// A second diff against the same expectation is clean.
	corrections, err = reconciler.Diff(ctx, expected)
	require.NoError(t, err)
	require.Empty(t, corrections)
}

func TestReconcilerApplyNothing(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconcilerService(repository.NewMemoryStore(), events.NoopPublisher{})
	require.NoError(t, reconciler.Apply(ctx, nil, "ops"))
}

func TestReconcilerApplyRejectsMalformedCorrections(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconcilerService(repository.NewMemoryStore(), events.NoopPublisher{})

	err := reconciler.Apply(ctx, []*Correction{{Kind: CorrectionChainConfig}}, "ops")
	require.Error(t, err)
	err = reconciler.Apply(ctx, []*Correction{{Kind: CorrectionTokenMapping}}, "ops")
	require.Error(t, err)
	err = reconciler.Apply(ctx, []*Correction{{Kind: "bogus"}}, "ops")
	require.Error(t, err)
}
