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

// SettlementService runs on the destination chain. It settles inbound
// deposit messages by minting synthetic tokens into its own custody and
// crediting the recipient's available ledger balance, and it burns custody
// on withdrawal and dispatches the release message back to the origin
// locker. Message ids are the only replay key; a settled id is a permanent
// no-op no matter how often the transport redelivers it.
type SettlementService struct {
	store     repository.Store
	mailbox   transport.Mailbox
	publisher events.Publisher
	chainID   uint32
	address   string
}

func NewSettlementService(store repository.Store, mailbox transport.Mailbox, publisher events.Publisher, chainID uint32, address string) *SettlementService {
	return &SettlementService{
		store:     store,
		mailbox:   mailbox,
		publisher: publisher,
		chainID:   chainID,
		address:   utils.MustNormalizeAddress(address),
	}
}

// ChainID returns the destination chain this manager settles on.
func (s *SettlementService) ChainID() uint32 { return s.chainID }

/// Address returns the manager's address: the minter of every synthetic
// token it controls and the envelope sender of every release it dispatches.
func (s *SettlementService) Address() string { return s.address }

// HandleMessage settles one inbound deposit message. The sender must be the
// registered balance locker for the origin domain; an unmapped source token
// leaves the message unprocessed so the transport retries it after the
// mapping is registered. Duplicates are successful no-ops.
func (s *SettlementService) HandleMessage(ctx context.Context, messageID string, origin uint32, sender string, body []byte) error {
	log := logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"origin":     origin,
		"sender":     sender,
	})

	// The replay check comes before everything else, trust and mapping
	// included: a settled message stays a successful no-op even after the
	// trusted locker for its origin has been rebound.
	processed, err := s.store.IsProcessed(ctx, messageID)
	if err != nil {
		return err
	}
	if processed {
		metrics.MessagesHandled.WithLabelValues("duplicate").Inc()
		log.Info("deposit message already settled, ignoring redelivery")
		return nil
	}

	deposit, err := transport.DecodeDepositBody(body)
	if err != nil {
		metrics.MessagesHandled.WithLabelValues("error").Inc()
		return fmt.Errorf("undecodable deposit body: %w", err)
	}

	mgr, err := s.store.GetChainBalanceManager(ctx, origin)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.MessagesHandled.WithLabelValues("unauthorized").Inc()
			log.Error("settlement rejected: no locker registered for origin domain")
			return ErrUnauthorizedSender
		}
		return err
	}
	if !utils.SameAddress(sender, mgr.LockerAddress) {
		metrics.MessagesHandled.WithLabelValues("unauthorized").Inc()
		log.WithField("expected", mgr.LockerAddress).Error("settlement rejected: sender is not the registered locker")
		return ErrUnauthorizedSender
	}

	sourceToken := utils.MustNormalizeAddress(deposit.SourceToken.Hex())
	mapping, err := s.store.GetMapping(ctx, origin, sourceToken, s.chainID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.MessagesHandled.WithLabelValues("unmapped").Inc()
			log.WithField("source_token", sourceToken).Warn("settlement deferred: source token has no mapping yet")
			return fmt.Errorf("%w: %s from domain %d", ErrUnmappedToken, sourceToken, origin)
		}
		return err
	}

	recipient := utils.MustNormalizeAddress(deposit.Recipient.Hex())
	credited := utils.ConvertDecimals(deposit.Amount, mapping.SourceDecimals, mapping.SyntheticDecimals)

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

		// Mint into the manager's custody, then credit the ledger. Custody
		// always covers the sum of all ledger balances for the token.
		if err := tx.AdjustSupply(ctx, mapping.SyntheticToken, credited); err != nil {
			return err
		}
		if err := tx.CreditAccount(ctx, s.chainID, mapping.SyntheticToken, s.address, credited); err != nil {
			return err
		}
		if err := tx.CreditAvailable(ctx, recipient, mapping.SyntheticToken, credited); err != nil {
			return err
		}
		if err := tx.MarkProcessed(ctx, &models.ProcessedMessage{
			MessageID: messageID,
			Origin:    origin,
			Sender:    utils.MustNormalizeAddress(sender),
			Recipient: s.address,
		}); err != nil {
			return err
		}
		return tx.CreateSettlementRecord(ctx, &models.SettlementRecord{
			ID:             uuid.New().String(),
			MessageID:      messageID,
			OriginDomain:   origin,
			SourceToken:    sourceToken,
			SyntheticToken: mapping.SyntheticToken,
			Recipient:      recipient,
			SourceAmount:   utils.FormatAmount(deposit.Amount),
			CreditedAmount: utils.FormatAmount(credited),
			UserNonce:      deposit.UserNonce,
		})
	})
	if err != nil {
		metrics.MessagesHandled.WithLabelValues("error").Inc()
		return err
	}
	if duplicate {
		metrics.MessagesHandled.WithLabelValues("duplicate").Inc()
		log.Info("deposit message already settled, ignoring redelivery")
		return nil
	}

	metrics.MessagesHandled.WithLabelValues("settled").Inc()
	log.WithFields(logrus.Fields{
		"synthetic_token": mapping.SyntheticToken,
		"source_amount":   utils.FormatAmount(deposit.Amount),
		"credited":        utils.FormatAmount(credited),
		"recipient":       recipient,
	}).Info("deposit settled")
	s.publisher.Publish(events.SubjectDepositSettled, map[string]interface{}{
		"message_id":      messageID,
		"origin_domain":   origin,
		"source_token":    sourceToken,
		"synthetic_token": mapping.SyntheticToken,
		"source_amount":   utils.FormatAmount(deposit.Amount),
		"credited":        utils.FormatAmount(credited),
		"recipient":       recipient,
	})
	return nil
}

// RequestWithdrawal burns amount of the user's synthetic token and
// dispatches the release message to the origin locker. The burn amount is
// in synthetic units; the released amount is the decimal-converted source
// amount. Returns the transport message id.
func (s *SettlementService) RequestWithdrawal(ctx context.Context, user, syntheticToken string, amount *big.Int, recipient string) (string, error) {
	userAddr, err := utils.NormalizeAddress(user)
	if err != nil {
		return "", fmt.Errorf("user: %w", err)
	}
	tokenAddr, err := utils.NormalizeAddress(syntheticToken)
	if err != nil {
		return "", fmt.Errorf("synthetic token: %w", err)
	}
	recipientAddr, err := utils.NormalizeAddress(recipient)
	if err != nil {
		return "", fmt.Errorf("recipient: %w", err)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}

	var (
		messageID string
		mapping   *models.TokenMapping
		released  *big.Int
	)
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		var err error
		mapping, err = tx.GetReverseMapping(ctx, tokenAddr, s.chainID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrMappingNotFound, tokenAddr)
			}
			return err
		}

		released = utils.ConvertDecimals(amount, mapping.SyntheticDecimals, mapping.SourceDecimals)
		if released.Sign() == 0 {
			// The amount truncates to nothing on the source chain.
			return fmt.Errorf("%w: %s rounds to zero source units", ErrInvalidAmount, utils.FormatAmount(amount))
		}

		locker, err := tx.GetChainBalanceManager(ctx, mapping.SourceChainID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: domain %d", ErrChainNotRegistered, mapping.SourceChainID)
			}
			return err
		}

		if err := tx.DebitAvailable(ctx, userAddr, tokenAddr, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientAvailable
			}
			return err
		}
		// Burn from custody so supply keeps matching outstanding ledger
		// balances.
		if err := tx.AdjustSupply(ctx, tokenAddr, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		if err := tx.DebitAccount(ctx, s.chainID, tokenAddr, s.address, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return fmt.Errorf("%w: burn of %s %s", ErrInsufficientCustody, utils.FormatAmount(amount), tokenAddr)
			}
			return err
		}

		body := (&transport.ReleaseBody{
			Token:     common.HexToAddress(mapping.SourceToken),
			Amount:    released,
			Recipient: common.HexToAddress(recipientAddr),
		}).Encode()

		messageID, err = s.mailbox.Dispatch(ctx, s.address, mapping.SourceChainID, locker.LockerAddress, body)
		if err != nil {
			metrics.MailboxDispatchFailures.Inc()
			return fmt.Errorf("dispatch rejected, withdrawal reverted: %w", err)
		}

		return tx.CreateDispatchRecord(ctx, &models.DispatchRecord{
			ID:                uuid.New().String(),
			MessageID:         messageID,
			Direction:         models.DispatchDirectionRelease,
			SourceChainID:     s.chainID,
			DestinationDomain: mapping.SourceChainID,
			Token:             tokenAddr,
			Amount:            utils.FormatAmount(amount),
			Sender:            userAddr,
			Recipient:         recipientAddr,
		})
	})
	if err != nil {
		return "", err
	}

	metrics.WithdrawalsRequested.WithLabelValues(utils.GlobalChainRegistry.DomainName(mapping.SourceChainID)).Inc()
	logrus.WithFields(logrus.Fields{
		"message_id":      messageID,
		"user":            userAddr,
		"synthetic_token": tokenAddr,
		"burned":          utils.FormatAmount(amount),
		"released":        utils.FormatAmount(released),
		"source_chain":    mapping.SourceChainID,
		"recipient":       recipientAddr,
	}).Info("withdrawal burned and release dispatched")
	s.publisher.Publish(events.SubjectWithdrawalRequested, map[string]interface{}{
		"message_id":      messageID,
		"user":            userAddr,
		"synthetic_token": tokenAddr,
		"burned":          utils.FormatAmount(amount),
		"released":        utils.FormatAmount(released),
		"source_chain":    mapping.SourceChainID,
		"recipient":       recipientAddr,
	})
	return messageID, nil
}

// LockBalance moves amount from the user's available balance to locked.
func (s *SettlementService) LockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	return s.ledgerOp(ctx, "lock", user, syntheticToken, amount, func(tx repository.Store, u, t string) error {
		return tx.LockBalance(ctx, u, t, amount)
	})
}

// UnlockBalance moves amount from the user's locked balance back to
// available.
func (s *SettlementService) UnlockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	return s.ledgerOp(ctx, "unlock", user, syntheticToken, amount, func(tx repository.Store, u, t string) error {
		return tx.UnlockBalance(ctx, u, t, amount)
	})
}

func (s *SettlementService) ledgerOp(ctx context.Context, op, user, syntheticToken string, amount *big.Int, fn func(tx repository.Store, user, token string) error) error {
	userAddr, err := utils.NormalizeAddress(user)
	if err != nil {
		return err
	}
	tokenAddr, err := utils.NormalizeAddress(syntheticToken)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		return fn(tx, userAddr, tokenAddr)
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues(op, "failed").Inc()
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return ErrInsufficientAvailable
		}
		return err
	}
	metrics.LedgerOperations.WithLabelValues(op, "ok").Inc()
	return nil
}

// GetBalance returns the user's available and locked balances of a
// synthetic token.
func (s *SettlementService) GetBalance(ctx context.Context, user, syntheticToken string) (available, locked *big.Int, err error) {
	userAddr, err := utils.NormalizeAddress(user)
	if err != nil {
		return nil, nil, err
	}
	tokenAddr, err := utils.NormalizeAddress(syntheticToken)
	if err != nil {
		return nil, nil, err
	}
	return s.store.LedgerBalances(ctx, userAddr, tokenAddr)
}

// GetAvailableBalance returns the spendable part only.
func (s *SettlementService) GetAvailableBalance(ctx context.Context, user, syntheticToken string) (*big.Int, error) {
	available, _, err := s.GetBalance(ctx, user, syntheticToken)
	return available, err
}

// GetLockedBalance returns the locked part only.
func (s *SettlementService) GetLockedBalance(ctx context.Context, user, syntheticToken string) (*big.Int, error) {
	_, locked, err := s.GetBalance(ctx, user, syntheticToken)
	return locked, err
}

// ListBalances returns every ledger entry the user holds.
func (s *SettlementService) ListBalances(ctx context.Context, user string) ([]*models.LedgerEntry, error) {
	userAddr, err := utils.NormalizeAddress(user)
	if err != nil {
		return nil, err
	}
	return s.store.ListLedgerEntries(ctx, userAddr)
}

// CustodiedBalance returns the manager's custody balance of a synthetic
// token, the reconciler's expected upper bound for ledger totals.
func (s *SettlementService) CustodiedBalance(ctx context.Context, syntheticToken string) (*big.Int, error) {
	tokenAddr, err := utils.NormalizeAddress(syntheticToken)
	if err != nil {
		return nil, err
	}
	return s.store.AccountBalance(ctx, s.chainID, tokenAddr, s.address)
}

// SetChainBalanceManager registers the trusted locker address for an origin
// domain. Messages from that domain settle only when their envelope sender
// matches this address.
func (s *SettlementService) SetChainBalanceManager(ctx context.Context, originDomain uint32, lockerAddress, updatedBy string) error {
	lockerAddr, err := utils.NormalizeAddress(lockerAddress)
	if err != nil {
		return fmt.Errorf("locker address: %w", err)
	}
	if err := s.store.SetChainBalanceManager(ctx, &models.ChainBalanceManager{
		OriginDomain:  originDomain,
		LockerAddress: lockerAddr,
		UpdatedBy:     updatedBy,
	}); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"origin_domain": originDomain,
		"locker":        lockerAddr,
		"updated_by":    updatedBy,
	}).Warn("trusted locker updated for origin domain")
	s.publisher.Publish(events.SubjectConfigUpdated, map[string]interface{}{
		"origin_domain": originDomain,
		"locker":        lockerAddr,
		"updated_by":    updatedBy,
	})
	return nil
}

// ListChainBalanceManagers returns the whole trust table.
func (s *SettlementService) ListChainBalanceManagers(ctx context.Context) ([]*models.ChainBalanceManager, error) {
	return s.store.ListChainBalanceManagers(ctx)
}

// MailboxConfig exposes the raw transport binding for diagnostics.
func (s *SettlementService) MailboxConfig() (uint32, string) {
	return s.mailbox.LocalDomain(), s.mailbox.Address()
}
