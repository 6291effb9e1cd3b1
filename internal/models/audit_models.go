package models

import (
	"time"
)

// DispatchDirection distinguishes the two message flows a locker or
// settlement manager can originate.
type DispatchDirection string

const (
	DispatchDirectionDeposit DispatchDirection = "deposit" // locker -> settlement manager
	DispatchDirectionRelease DispatchDirection = "release" // settlement manager -> locker
)

// DispatchRecord is the outbound audit trail. One row per dispatched
// message, carrying the transport message id operators use to trace a stuck
// deposit end to end.
type DispatchRecord struct {
	ID                string            `json:"id" gorm:"primaryKey"` // UUID
	MessageID         string            `json:"message_id" gorm:"not null;index;size:66"`
	Direction         DispatchDirection `json:"direction" gorm:"not null"`
	SourceChainID     uint32            `json:"source_chain_id" gorm:"not null;index"`
	DestinationDomain uint32            `json:"destination_domain" gorm:"not null"`
	Token             string            `json:"token" gorm:"not null;size:42"`
	Amount            string            `json:"amount" gorm:"not null"`
	Sender            string            `json:"sender" gorm:"not null;size:42;index"`
	Recipient         string            `json:"recipient" gorm:"not null;size:42"`
	UserNonce         uint64            `json:"user_nonce"`
	CreatedAt         time.Time         `json:"created_at"`
}

func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// SettlementRecord is the inbound audit trail: one row per settled deposit
// message, recording both the source amount and the decimal-converted amount
// actually credited.
type SettlementRecord struct {
	ID             string    `json:"id" gorm:"primaryKey"` // UUID
	MessageID      string    `json:"message_id" gorm:"not null;uniqueIndex;size:66"`
	OriginDomain   uint32    `json:"origin_domain" gorm:"not null;index"`
	SourceToken    string    `json:"source_token" gorm:"not null;size:42"`
	SyntheticToken string    `json:"synthetic_token" gorm:"not null;size:42"`
	Recipient      string    `json:"recipient" gorm:"not null;size:42;index"`
	SourceAmount   string    `json:"source_amount" gorm:"not null"`
	CreditedAmount string    `json:"credited_amount" gorm:"not null"`
	UserNonce      uint64    `json:"user_nonce"`
	CreatedAt      time.Time `json:"created_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}
