package models

import (
	"time"
)

// ChainConfig is the per-domain transport configuration: which mailbox serves
// the domain and how the chain should be displayed. DomainID must equal the
// transport-assigned identifier for the chain; recording another chain's id
// here is the dominant historical incident class, which is why the row is
// versioned and every change keeps UpdatedBy.
type ChainConfig struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	DomainID         uint32    `json:"domain_id" gorm:"not null;uniqueIndex"`
	Mailbox          string    `json:"mailbox" gorm:"not null;size:42"`
	DisplayName      string    `json:"display_name" gorm:"not null"`
	BlockTimeHintSec uint16    `json:"block_time_hint_sec"`
	Version          int       `json:"version" gorm:"not null;default:1"`
	UpdatedBy        string    `json:"updated_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (ChainConfig) TableName() string {
	return "chain_configs"
}

// TokenMapping binds a source-chain token to its synthetic representation on
// a target chain. Key = (source_chain_id, source_token, target_chain_id).
// Rows are created once by the factory and mutate only through the explicit
// update path; syn_decimals must equal the synthetic token's own decimals.
type TokenMapping struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	SourceChainID     uint32    `json:"source_chain_id" gorm:"not null;uniqueIndex:idx_mapping_key"`
	SourceToken       string    `json:"source_token" gorm:"not null;size:42;uniqueIndex:idx_mapping_key"`
	TargetChainID     uint32    `json:"target_chain_id" gorm:"not null;uniqueIndex:idx_mapping_key"`
	SyntheticToken    string    `json:"synthetic_token" gorm:"not null;size:42;index:idx_mapping_synthetic"`
	SourceDecimals    uint8     `json:"source_decimals" gorm:"not null"`
	SyntheticDecimals uint8     `json:"synthetic_decimals" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (TokenMapping) TableName() string {
	return "token_mappings"
}

// SyntheticToken is a mint/burn token record controlled exclusively by the
// settlement manager named in Minter. Decimals are fixed at creation; a
// decimal change means deploying a replacement token and updating the
// mapping, never editing this row.
type SyntheticToken struct {
	ID          string    `json:"id" gorm:"primaryKey"` // UUID
	Address     string    `json:"address" gorm:"not null;uniqueIndex;size:42"`
	ChainID     uint32    `json:"chain_id" gorm:"not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	Symbol      string    `json:"symbol" gorm:"not null"`
	Decimals    uint8     `json:"decimals" gorm:"not null"`
	Minter      string    `json:"minter" gorm:"not null;size:42"`
	TotalSupply string    `json:"total_supply" gorm:"not null;default:'0'"` // raw units, base-10
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SyntheticToken) TableName() string {
	return "synthetic_tokens"
}

// TokenAccount holds a fungible balance of one token on one chain for one
// holder. User wallets and locker custody are both rows here; the settlement
// manager's custodial balance of a synthetic token is a row here too.
// Balances are raw units stored as base-10 strings (no 256-bit column type).
type TokenAccount struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChainID   uint32    `json:"chain_id" gorm:"not null;uniqueIndex:idx_account_key"`
	Token     string    `json:"token" gorm:"not null;size:42;uniqueIndex:idx_account_key"`
	Holder    string    `json:"holder" gorm:"not null;size:42;uniqueIndex:idx_account_key"`
	Balance   string    `json:"balance" gorm:"not null;default:'0'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenAccount) TableName() string {
	return "token_accounts"
}

// UserNonce is the per-(chain, user) monotonic dispatch counter. It is an
// audit and ordering aid only; replay protection is keyed by transport
// message id, never by this value.
type UserNonce struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChainID   uint32    `json:"chain_id" gorm:"not null;uniqueIndex:idx_nonce_key"`
	User      string    `json:"user" gorm:"column:user_address;not null;size:42;uniqueIndex:idx_nonce_key"`
	Nonce     uint64    `json:"nonce" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserNonce) TableName() string {
	return "user_nonces"
}

// LedgerEntry is the destination-side trading ledger: the available/locked
// split per (user, synthetic token). available + locked never exceeds the
// settlement manager's custodial balance of the token.
type LedgerEntry struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	User           string    `json:"user" gorm:"column:user_address;not null;size:42;uniqueIndex:idx_ledger_key"`
	SyntheticToken string    `json:"synthetic_token" gorm:"not null;size:42;uniqueIndex:idx_ledger_key"`
	Available      string    `json:"available" gorm:"not null;default:'0'"`
	Locked         string    `json:"locked" gorm:"not null;default:'0'"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// ProcessedMessage is the append-only idempotency set. A message id present
// here makes any redelivery a successful no-op. Rows are never deleted.
type ProcessedMessage struct {
	MessageID   string    `json:"message_id" gorm:"primaryKey;size:66"`
	Origin      uint32    `json:"origin" gorm:"not null;index"`
	Sender      string    `json:"sender" gorm:"not null;size:42"`
	Recipient   string    `json:"recipient" gorm:"not null;size:42"`
	ProcessedAt time.Time `json:"processed_at" gorm:"autoCreateTime"`
}

func (ProcessedMessage) TableName() string {
	return "processed_messages"
}

// LockerToken is a whitelist row: the locker on ChainID accepts deposits of
// Token.
type LockerToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChainID   uint32    `json:"chain_id" gorm:"not null;uniqueIndex:idx_locker_token_key"`
	Token     string    `json:"token" gorm:"not null;size:42;uniqueIndex:idx_locker_token_key"`
	Decimals  uint8     `json:"decimals" gorm:"not null"`
	Symbol    string    `json:"symbol"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (LockerToken) TableName() string {
	return "locker_tokens"
}

// LockerDestination binds a source-chain locker to the single destination it
// dispatches to. Versioned for the same reason as ChainConfig: silent drift
// between this row and the live settlement manager is not recoverable
// automatically and must be auditable from raw values.
type LockerDestination struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ChainID           uint32    `json:"chain_id" gorm:"not null;uniqueIndex"`
	DestinationDomain uint32    `json:"destination_domain" gorm:"not null"`
	SettlementManager string    `json:"settlement_manager" gorm:"not null;size:42"`
	Version           int       `json:"version" gorm:"not null;default:1"`
	UpdatedBy         string    `json:"updated_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (LockerDestination) TableName() string {
	return "locker_destinations"
}

// ChainBalanceManager is the settlement manager's trust table: the only
// locker address whose messages from OriginDomain may settle. This is the
// central trust boundary: an inbound message whose sender differs is
// rejected before any state is touched.
type ChainBalanceManager struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	OriginDomain  uint32    `json:"origin_domain" gorm:"not null;uniqueIndex"`
	LockerAddress string    `json:"locker_address" gorm:"not null;size:42"`
	UpdatedBy     string    `json:"updated_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ChainBalanceManager) TableName() string {
	return "chain_balance_managers"
}
