package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"settlement-backend/internal/events"
	"settlement-backend/internal/metrics"
	"settlement-backend/internal/models"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/transport"
	"settlement-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LockerService is the balance locker for one source chain: it custodies
// deposited tokens, dispatches the matching cross-chain message, and
// releases custody when a verified withdrawal message comes back. Locking
// and dispatching happen in one transaction, so tokens are never left locked
// without an outbound message.
type LockerService struct {
	store     repository.Store
	mailbox   transport.Mailbox
	publisher events.Publisher
	chainID   uint32
	address   string
}

func NewLockerService(store repository.Store, mailbox transport.Mailbox, publisher events.Publisher, chainID uint32, address string) *LockerService {
	return &LockerService{
		store:     store,
		mailbox:   mailbox,
		publisher: publisher,
		chainID:   chainID,
		address:   utils.MustNormalizeAddress(address),
	}
}

// ChainID returns the source chain this locker serves.
func (s *LockerService) ChainID() uint32 { return s.chainID }

// Address returns the locker's own address, the envelope sender of every
// message it dispatches.
func (s *LockerService) Address() string { return s.address }

// Deposit locks amount of token from caller and dispatches the deposit
// message crediting recipient on the destination. Returns the transport
// message id. Any failure, including the transport refusing the dispatch,
// reverts the whole operation.
func (s *LockerService) Deposit(ctx context.Context, caller, token string, amount *big.Int, recipient string) (string, error) {
	callerAddr, err := utils.NormalizeAddress(caller)
	if err != nil {
		return "", fmt.Errorf("caller: %w", err)
	}
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	recipientAddr, err := utils.NormalizeAddress(recipient)
	if err != nil {
		return "", fmt.Errorf("recipient: %w", err)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}

	var messageID string
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		whitelisted, err := tx.IsTokenWhitelisted(ctx, s.chainID, tokenAddr)
		if err != nil {
			return err
		}
		if !whitelisted {
			return ErrTokenNotWhitelisted
		}

		dest, err := tx.GetLockerDestination(ctx, s.chainID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDestinationNotConfigured
			}
			return err
		}

		if err := tx.DebitAccount(ctx, s.chainID, tokenAddr, callerAddr, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return fmt.Errorf("%w: %s of %s", ErrTransferFailed, utils.FormatAmount(amount), tokenAddr)
			}
			return err
		}
		if err := tx.CreditAccount(ctx, s.chainID, tokenAddr, s.address, amount); err != nil {
			return err
		}

		nonce, err := tx.NextUserNonce(ctx, s.chainID, callerAddr)
		if err != nil {
			return err
		}

		body := (&transport.DepositBody{
			SourceToken: common.HexToAddress(tokenAddr),
			Amount:      amount,
			Recipient:   common.HexToAddress(recipientAddr),
			UserNonce:   nonce,
		}).Encode()

		messageID, err = s.mailbox.Dispatch(ctx, s.address, dest.DestinationDomain, dest.SettlementManager, body)
		if err != nil {
			metrics.MailboxDispatchFailures.Inc()
			return fmt.Errorf("dispatch rejected, deposit reverted: %w", err)
		}

		return tx.CreateDispatchRecord(ctx, &models.DispatchRecord{
			ID:                uuid.New().String(),
			MessageID:         messageID,
			Direction:         models.DispatchDirectionDeposit,
			SourceChainID:     s.chainID,
			DestinationDomain: dest.DestinationDomain,
			Token:             tokenAddr,
			Amount:            utils.FormatAmount(amount),
			Sender:            callerAddr,
			Recipient:         recipientAddr,
			UserNonce:         nonce,
		})
	})
	if err != nil {
		return "", err
	}

	metrics.DepositsDispatched.WithLabelValues(utils.GlobalChainRegistry.DomainName(s.chainID)).Inc()
	logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"chain":      s.chainID,
		"token":      tokenAddr,
		"amount":     utils.FormatAmount(amount),
		"caller":     callerAddr,
		"recipient":  recipientAddr,
	}).Info("deposit locked and dispatched")
	s.publisher.Publish(events.SubjectDepositDispatched, map[string]interface{}{
		"message_id": messageID,
		"chain_id":   s.chainID,
		"token":      tokenAddr,
		"amount":     utils.FormatAmount(amount),
		"caller":     callerAddr,
		"recipient":  recipientAddr,
	})
	return messageID, nil
}

// HandleMessage is the verified-delivery entry point for withdrawal release
// messages. Only the configured destination settlement manager may release
// custody; duplicate deliveries are successful no-ops.
func (s *LockerService) HandleMessage(ctx context.Context, messageID string, origin uint32, sender string, body []byte) error {
	// The replay check precedes the sender check: a released message stays
	// a successful no-op even after the destination binding has changed.
	processed, err := s.store.IsProcessed(ctx, messageID)
	if err != nil {
		return err
	}
	if processed {
		metrics.ReleasesHandled.WithLabelValues("duplicate").Inc()
		logrus.WithField("message_id", messageID).Info("release message already handled, ignoring redelivery")
		return nil
	}

	release, err := transport.DecodeReleaseBody(body)
	if err != nil {
		metrics.ReleasesHandled.WithLabelValues("error").Inc()
		return fmt.Errorf("undecodable release body: %w", err)
	}

	dest, err := s.store.GetLockerDestination(ctx, s.chainID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDestinationNotConfigured
		}
		return err
	}
	if origin != dest.DestinationDomain || !utils.SameAddress(sender, dest.SettlementManager) {
		metrics.ReleasesHandled.WithLabelValues("unauthorized").Inc()
		logrus.WithFields(logrus.Fields{
			"message_id": messageID,
			"origin":     origin,
			"sender":     sender,
		}).Error("release rejected: sender is not the configured settlement manager")
		return ErrUnauthorizedSender
	}

	token := utils.MustNormalizeAddress(release.Token.Hex())
	recipient := utils.MustNormalizeAddress(release.Recipient.Hex())

	duplicate := false
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		processed, err := tx.IsProcessed(ctx, messageID)
		if err != nil {
			return err
		}
		if processed {
			duplicate = true
			return nil
		}

		if err := tx.DebitAccount(ctx, s.chainID, token, s.address, release.Amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return fmt.Errorf("%w: release of %s %s", ErrInsufficientCustody, utils.FormatAmount(release.Amount), token)
			}
			return err
		}
		if err := tx.CreditAccount(ctx, s.chainID, token, recipient, release.Amount); err != nil {
			return err
		}
		return tx.MarkProcessed(ctx, &models.ProcessedMessage{
			MessageID: messageID,
			Origin:    origin,
			Sender:    utils.MustNormalizeAddress(sender),
			Recipient: s.address,
		})
	})
	if err != nil {
		metrics.ReleasesHandled.WithLabelValues("error").Inc()
		return err
	}
	if duplicate {
		metrics.ReleasesHandled.WithLabelValues("duplicate").Inc()
		return nil
	}

	metrics.ReleasesHandled.WithLabelValues("released").Inc()
	logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"chain":      s.chainID,
		"token":      token,
		"amount":     utils.FormatAmount(release.Amount),
		"recipient":  recipient,
	}).Info("withdrawal released from custody")
	s.publisher.Publish(events.SubjectWithdrawalReleased, map[string]interface{}{
		"message_id": messageID,
		"chain_id":   s.chainID,
		"token":      token,
		"amount":     utils.FormatAmount(release.Amount),
		"recipient":  recipient,
	})
	return nil
}

// AddToken whitelists a token for deposit.
func (s *LockerService) AddToken(ctx context.Context, token string, decimals uint8, symbol, addedBy string) error {
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return err
	}
	err = s.store.AddLockerToken(ctx, &models.LockerToken{
		ChainID:  s.chainID,
		Token:    tokenAddr,
		Decimals: decimals,
		Symbol:   symbol,
		AddedBy:  addedBy,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Re-adding a whitelisted token is harmless.
		return nil
	}
	return err
}

// RemoveToken removes a token from the whitelist. In-flight deposits of the
// token still settle; only new deposits are refused.
func (s *LockerService) RemoveToken(ctx context.Context, token string) error {
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return err
	}
	return s.store.RemoveLockerToken(ctx, s.chainID, tokenAddr)
}

// ListTokens returns the current whitelist.
func (s *LockerService) ListTokens(ctx context.Context) ([]*models.LockerToken, error) {
	return s.store.ListLockerTokens(ctx, s.chainID)
}

// CustodiedBalance returns the locker's custody balance of token.
func (s *LockerService) CustodiedBalance(ctx context.Context, token string) (*big.Int, error) {
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return nil, err
	}
	return s.store.AccountBalance(ctx, s.chainID, tokenAddr, s.address)
}

// MailboxConfig exposes the raw transport binding for diagnostics: the
// domain this locker believes it lives on and the mailbox it dispatches
// through. Misrecorded domain ids are only findable by comparing these raw
// values against the transport's own records.
func (s *LockerService) MailboxConfig() (uint32, string) {
	return s.mailbox.LocalDomain(), s.mailbox.Address()
}

// DestinationConfig exposes the raw destination binding for diagnostics.
func (s *LockerService) DestinationConfig(ctx context.Context) (*models.LockerDestination, error) {
	dest, err := s.store.GetLockerDestination(ctx, s.chainID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDestinationNotConfigured
	}
	return dest, err
}

// UpdateDestination rebinds the locker to a settlement manager. The change
// is versioned and the audit event carries before and after values.
func (s *LockerService) UpdateDestination(ctx context.Context, destinationDomain uint32, settlementManager, updatedBy string) error {
	managerAddr, err := utils.NormalizeAddress(settlementManager)
	if err != nil {
		return fmt.Errorf("settlement manager: %w", err)
	}

	old, err := s.store.GetLockerDestination(ctx, s.chainID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	dest := &models.LockerDestination{
		ChainID:           s.chainID,
		DestinationDomain: destinationDomain,
		SettlementManager: managerAddr,
		UpdatedBy:         updatedBy,
	}
	if err := s.store.SetLockerDestination(ctx, dest); err != nil {
		return err
	}

	fields := logrus.Fields{
		"chain":                  s.chainID,
		"new_destination_domain": destinationDomain,
		"new_settlement_manager": managerAddr,
		"updated_by":             updatedBy,
		"version":                dest.Version,
	}
	data := map[string]interface{}{
		"chain_id":               s.chainID,
		"new_destination_domain": destinationDomain,
		"new_settlement_manager": managerAddr,
		"updated_by":             updatedBy,
		"version":                dest.Version,
	}
	if old != nil {
		fields["old_destination_domain"] = old.DestinationDomain
		fields["old_settlement_manager"] = old.SettlementManager
		data["old_destination_domain"] = old.DestinationDomain
		data["old_settlement_manager"] = old.SettlementManager
	}
	logrus.WithFields(fields).Warn("locker destination updated")
	s.publisher.Publish(events.SubjectConfigUpdated, data)
	return nil
}
