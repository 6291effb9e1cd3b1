// Package repository provides data access for the settlement tables. Every
// durable table has a narrow interface here; the GORM implementation backs
// production Postgres and the memory implementation backs tests and the
// single-process local mode.
package repository

import (
	"context"
	"errors"
	"math/big"

	"settlement-backend/internal/models"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("record already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// MappingRepository is the token mapping registry table.
type MappingRepository interface {
	// CreateMapping fails with ErrDuplicate when the key already exists;
	// overwrites go through UpdateMapping only.
	CreateMapping(ctx context.Context, m *models.TokenMapping) error
	UpdateMapping(ctx context.Context, m *models.TokenMapping) error
	GetMapping(ctx context.Context, sourceChainID uint32, sourceToken string, targetChainID uint32) (*models.TokenMapping, error)
	// GetReverseMapping resolves a synthetic token back to its source
	// chain and token, which routes withdrawals.
	GetReverseMapping(ctx context.Context, syntheticToken string, targetChainID uint32) (*models.TokenMapping, error)
	ListMappings(ctx context.Context) ([]*models.TokenMapping, error)
}

// AccountRepository is chain-local fungible state: token balances and the
// per-user dispatch nonce.
type AccountRepository interface {
	AccountBalance(ctx context.Context, chainID uint32, token, holder string) (*big.Int, error)
	CreditAccount(ctx context.Context, chainID uint32, token, holder string, amount *big.Int) error
	// DebitAccount fails with ErrInsufficientBalance rather than going
	// negative.
	DebitAccount(ctx context.Context, chainID uint32, token, holder string, amount *big.Int) error
	// NextUserNonce increments and returns the (chain, user) counter.
	NextUserNonce(ctx context.Context, chainID uint32, user string) (uint64, error)
}

// LedgerRepository is the destination-side trading ledger.
type LedgerRepository interface {
	LedgerBalances(ctx context.Context, user, syntheticToken string) (available, locked *big.Int, err error)
	CreditAvailable(ctx context.Context, user, syntheticToken string, amount *big.Int) error
	DebitAvailable(ctx context.Context, user, syntheticToken string, amount *big.Int) error
	LockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error
	UnlockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error
	ListLedgerEntries(ctx context.Context, user string) ([]*models.LedgerEntry, error)
}

// MessageRepository is the processed-message set plus the dispatch and
// settlement audit trails.
type MessageRepository interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, msg *models.ProcessedMessage) error
	CreateDispatchRecord(ctx context.Context, rec *models.DispatchRecord) error
	FindDispatchByMessageID(ctx context.Context, messageID string) (*models.DispatchRecord, error)
	CreateSettlementRecord(ctx context.Context, rec *models.SettlementRecord) error
	FindSettlementByMessageID(ctx context.Context, messageID string) (*models.SettlementRecord, error)
}

// TokenRepository is the synthetic token table.
type TokenRepository interface {
	CreateSyntheticToken(ctx context.Context, token *models.SyntheticToken) error
	GetSyntheticToken(ctx context.Context, address string) (*models.SyntheticToken, error)
	// AdjustSupply applies a mint (positive) or burn (negative) delta;
	// burning more than the outstanding supply is ErrInsufficientBalance.
	AdjustSupply(ctx context.Context, address string, delta *big.Int) error
	ListSyntheticTokens(ctx context.Context) ([]*models.SyntheticToken, error)
}

// ConfigRepository is chain configuration, locker destination binding, the
// settlement manager's trust table and the deposit whitelist.
type ConfigRepository interface {
	UpsertChainConfig(ctx context.Context, cfg *models.ChainConfig) error
	GetChainConfig(ctx context.Context, domainID uint32) (*models.ChainConfig, error)
	ListChainConfigs(ctx context.Context) ([]*models.ChainConfig, error)

	GetLockerDestination(ctx context.Context, chainID uint32) (*models.LockerDestination, error)
	SetLockerDestination(ctx context.Context, dest *models.LockerDestination) error

	GetChainBalanceManager(ctx context.Context, originDomain uint32) (*models.ChainBalanceManager, error)
	SetChainBalanceManager(ctx context.Context, mgr *models.ChainBalanceManager) error
	ListChainBalanceManagers(ctx context.Context) ([]*models.ChainBalanceManager, error)

	AddLockerToken(ctx context.Context, token *models.LockerToken) error
	RemoveLockerToken(ctx context.Context, chainID uint32, token string) error
	IsTokenWhitelisted(ctx context.Context, chainID uint32, token string) (bool, error)
	ListLockerTokens(ctx context.Context, chainID uint32) ([]*models.LockerToken, error)
}

// Store aggregates every repository and adds transactional composition.
// Mutating service operations run inside Atomic so a failure reverts all of
// their writes, mirroring the all-or-nothing transaction model the
// settlement semantics assume.
type Store interface {
	MappingRepository
	AccountRepository
	LedgerRepository
	MessageRepository
	TokenRepository
	ConfigRepository

	Atomic(ctx context.Context, fn func(Store) error) error
}
