package services

import (
	"context"
	"math/big"
	"testing"

	"settlement-backend/internal/events"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/transport"
	"settlement-backend/internal/utils"

	"github.com/stretchr/testify/require"
)

const (
	sourceDomain uint32 = 1
	destDomain   uint32 = 42161

	lockerAddress  = "0xaaaa00000000000000000000000000000000aaaa"
	managerAddress = "0xbbbb00000000000000000000000000000000bbbb"
	usdtAddress    = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	aliceAddress   = "0x1111111111111111111111111111111111111111"
	bobAddress     = "0x2222222222222222222222222222222222222222"
)

// amount6 builds a raw-unit amount for a 6-decimal token.
func amount6(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), big.NewInt(1_000_000))
}

// amount18 builds a raw-unit amount for an 18-decimal token.
func amount18(units int64) *big.Int {
	scale, _ := new(big.Int).SetString("1000000000000000000", 10)
	return new(big.Int).Mul(big.NewInt(units), scale)
}

type fixture struct {
	ctx        context.Context
	store      *repository.MemoryStore
	network    *transport.LocalNetwork
	locker     *LockerService
	settlement *SettlementService
	factory    *FactoryService
}

// newFixture wires a locker and a settlement manager over a held in-process
// network; every test decides explicitly when and in what order messages
// move.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	network := transport.NewLocalNetwork()
	network.Hold()

	originMailbox := network.AddDomain(sourceDomain, lockerAddress, transport.NoopSecurityModule{})
	destMailbox := network.AddDomain(destDomain, managerAddress, transport.NoopSecurityModule{})

	publisher := events.NoopPublisher{}
	locker := NewLockerService(store, originMailbox, publisher, sourceDomain, lockerAddress)
	originMailbox.Register(locker.Address(), locker)

	settlement := NewSettlementService(store, destMailbox, publisher, destDomain, managerAddress)
	destMailbox.Register(settlement.Address(), settlement)

	return &fixture{
		ctx:        context.Background(),
		store:      store,
		network:    network,
		locker:     locker,
		settlement: settlement,
		factory:    NewFactoryService(store, destDomain, managerAddress),
	}
}

// configure sets up the trust table, the locker destination, the deposit
// whitelist and a synthetic USDT with the given decimals. Returns the
// synthetic token address.
func (f *fixture) configure(t *testing.T, synDecimals uint8) string {
	t.Helper()
	require.NoError(t, f.settlement.SetChainBalanceManager(f.ctx, sourceDomain, lockerAddress, "test"))
	require.NoError(t, f.locker.UpdateDestination(f.ctx, destDomain, managerAddress, "test"))
	require.NoError(t, f.locker.AddToken(f.ctx, usdtAddress, 6, "USDT", "test"))

	token, err := f.factory.CreateSyntheticToken(f.ctx, &CreateSyntheticTokenInput{
		SourceChainID:     sourceDomain,
		SourceToken:       usdtAddress,
		Name:              "Synthetic USDT",
		Symbol:            "sUSDT",
		SourceDecimals:    6,
		SyntheticDecimals: synDecimals,
	})
	require.NoError(t, err)
	return token.Address
}

// fund credits a wallet on the source chain.
func (f *fixture) fund(t *testing.T, holder string, amount *big.Int) {
	t.Helper()
	require.NoError(t, f.store.CreditAccount(f.ctx, sourceDomain, utils.MustNormalizeAddress(usdtAddress), utils.MustNormalizeAddress(holder), amount))
}

func (f *fixture) sourceBalance(t *testing.T, holder string) *big.Int {
	t.Helper()
	balance, err := f.store.AccountBalance(f.ctx, sourceDomain, utils.MustNormalizeAddress(usdtAddress), utils.MustNormalizeAddress(holder))
	require.NoError(t, err)
	return balance
}

// checkConservation verifies that synthetic supply, the manager's custody and
// the sum of all user ledger balances agree.
func (f *fixture) checkConservation(t *testing.T, synthetic string, users ...string) {
	t.Helper()
	custody, err := f.settlement.CustodiedBalance(f.ctx, synthetic)
	require.NoError(t, err)

	token, err := f.store.GetSyntheticToken(f.ctx, utils.MustNormalizeAddress(synthetic))
	require.NoError(t, err)
	require.Equal(t, token.TotalSupply, custody.String(), "supply and custody diverged")

	total := new(big.Int)
	for _, user := range users {
		available, locked, err := f.settlement.GetBalance(f.ctx, user, synthetic)
		require.NoError(t, err)
		total.Add(total, available)
		total.Add(total, locked)
	}
	require.Equal(t, custody.String(), total.String(), "ledger total diverged from custody")
}

func TestDepositSettlesSameDecimals(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Dispatched but not yet delivered: source side moved, destination did
	// not.
	require.Equal(t, "0", f.sourceBalance(t, aliceAddress).String())
	custody, err := f.locker.CustodiedBalance(f.ctx, usdtAddress)
	require.NoError(t, err)
	require.Equal(t, amount6(100).String(), custody.String())
	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, "0", available.String())

	require.NoError(t, f.network.Deliver(f.ctx, id))

	available, err = f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount6(100).String(), available.String())
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestDepositSettlesUpscaledDecimals(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	// 100 USDT at 6 decimals credits 100e18 synthetic units.
	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount18(100).String(), available.String())
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestDepositRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.network.Redeliver(f.ctx, id))
	}

	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount18(100).String(), available.String(), "redelivery must not double-credit")
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestSettledDepositSurvivesTrustRebinding(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	// The trusted locker for the origin moves after settlement. Redelivery
	// of an already-settled id must stay a successful no-op, not an
	// authorization failure that would keep the message in the retry loop.
	require.NoError(t, f.settlement.SetChainBalanceManager(f.ctx, sourceDomain, bobAddress, "test"))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.network.Redeliver(f.ctx, id))
	}

	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount18(100).String(), available.String(), "redelivery after rebind must not double-credit")
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestDepositRecipientDiffersFromCaller(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(25))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(25), bobAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	available, err := f.settlement.GetAvailableBalance(f.ctx, bobAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount6(25).String(), available.String())

	available, err = f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, "0", available.String())
}

func TestDepositRejections(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(10))

	_, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, big.NewInt(0), aliceAddress)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, nil, aliceAddress)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.locker.Deposit(f.ctx, aliceAddress, bobAddress, amount6(1), aliceAddress)
	require.ErrorIs(t, err, ErrTokenNotWhitelisted)

	_, err = f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(11), aliceAddress)
	require.ErrorIs(t, err, ErrTransferFailed)

	// Every rejection left the wallet untouched and nothing in flight.
	require.Equal(t, amount6(10).String(), f.sourceBalance(t, aliceAddress).String())
	require.Empty(t, f.network.Pending())
}

func TestDepositWithoutDestinationRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.locker.AddToken(f.ctx, usdtAddress, 6, "USDT", "test"))
	f.fund(t, aliceAddress, amount6(10))

	_, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(10), aliceAddress)
	require.ErrorIs(t, err, ErrDestinationNotConfigured)
	require.Equal(t, amount6(10).String(), f.sourceBalance(t, aliceAddress).String())
}

func TestUnmappedTokenDefersSettlement(t *testing.T) {
	f := newFixture(t)
	// Trust and whitelist without any mapping.
	require.NoError(t, f.settlement.SetChainBalanceManager(f.ctx, sourceDomain, lockerAddress, "test"))
	require.NoError(t, f.locker.UpdateDestination(f.ctx, destDomain, managerAddress, "test"))
	require.NoError(t, f.locker.AddToken(f.ctx, usdtAddress, 6, "USDT", "test"))
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)

	err = f.network.Deliver(f.ctx, id)
	require.ErrorIs(t, err, ErrUnmappedToken)
	require.Equal(t, []string{id}, f.network.Pending(), "unmapped deposit must stay pending")

	processed, err := f.store.IsProcessed(f.ctx, id)
	require.NoError(t, err)
	require.False(t, processed, "a deferred message must not be marked processed")

	// Registering the mapping makes the retry settle.
	token, err := f.factory.CreateSyntheticToken(f.ctx, &CreateSyntheticTokenInput{
		SourceChainID:     sourceDomain,
		SourceToken:       usdtAddress,
		Name:              "Synthetic USDT",
		Symbol:            "sUSDT",
		SourceDecimals:    6,
		SyntheticDecimals: 18,
	})
	require.NoError(t, err)

	require.NoError(t, f.network.Deliver(f.ctx, id))
	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, token.Address)
	require.NoError(t, err)
	require.Equal(t, amount18(100).String(), available.String())
}

func TestUnauthorizedDepositSenderRejected(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	// Rebind the trust table to a different locker address.
	require.NoError(t, f.settlement.SetChainBalanceManager(f.ctx, sourceDomain, bobAddress, "test"))
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)

	err = f.network.Deliver(f.ctx, id)
	require.ErrorIs(t, err, ErrUnauthorizedSender)

	// No destination state moved.
	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, "0", available.String())
	token, err := f.store.GetSyntheticToken(f.ctx, utils.MustNormalizeAddress(synthetic))
	require.NoError(t, err)
	require.Equal(t, "0", token.TotalSupply)
	processed, err := f.store.IsProcessed(f.ctx, id)
	require.NoError(t, err)
	require.False(t, processed)
}

func TestUnknownOriginRejected(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)

	// A well-formed deposit from an origin with no trust table row.
	body := depositBody(t, usdtAddress, amount6(5), aliceAddress, 1)
	err := f.settlement.HandleMessage(f.ctx, "0x01", 999, lockerAddress, body)
	require.ErrorIs(t, err, ErrUnauthorizedSender)

	token, err := f.store.GetSyntheticToken(f.ctx, utils.MustNormalizeAddress(synthetic))
	require.NoError(t, err)
	require.Equal(t, "0", token.TotalSupply)
}

func TestWithdrawalRoundTripSameDecimals(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	releaseID, err := f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, amount6(40), bobAddress)
	require.NoError(t, err)

	// Burn happened immediately; the release is still in flight.
	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount6(60).String(), available.String())
	f.checkConservation(t, synthetic, aliceAddress)

	require.NoError(t, f.network.Deliver(f.ctx, releaseID))

	require.Equal(t, amount6(40).String(), f.sourceBalance(t, bobAddress).String())
	custody, err := f.locker.CustodiedBalance(f.ctx, usdtAddress)
	require.NoError(t, err)
	require.Equal(t, amount6(60).String(), custody.String())
}

func TestWithdrawalDownscaleTruncates(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	// 50e18 plus sub-unit dust burns in full but releases exactly 50 USDT.
	burn := new(big.Int).Add(amount18(50), big.NewInt(999_999_999_999))
	releaseID, err := f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, burn, aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, releaseID))

	require.Equal(t, amount6(50).String(), f.sourceBalance(t, aliceAddress).String())

	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(amount18(100), burn).String(), available.String())

	// The truncated dust stays in locker custody; value is never created.
	custody, err := f.locker.CustodiedBalance(f.ctx, usdtAddress)
	require.NoError(t, err)
	require.Equal(t, amount6(50).String(), custody.String())
}

func TestWithdrawalRoundingToZeroRejected(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	f.fund(t, aliceAddress, amount6(1))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(1), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	// Less than one source unit cannot be released.
	_, err = f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, big.NewInt(999_999_999_999), aliceAddress)
	require.ErrorIs(t, err, ErrInvalidAmount)

	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount18(1).String(), available.String(), "rejected withdrawal must not burn")
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestOverWithdrawalRejected(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(10))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(10), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	_, err = f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, amount6(11), aliceAddress)
	require.ErrorIs(t, err, ErrInsufficientAvailable)

	require.Empty(t, f.network.Pending(), "rejected withdrawal must not dispatch")
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestWithdrawalOfUnmappedSyntheticRejected(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 6)

	_, err := f.settlement.RequestWithdrawal(f.ctx, aliceAddress, bobAddress, amount6(1), aliceAddress)
	require.ErrorIs(t, err, ErrMappingNotFound)
}

func TestReleaseRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	releaseID, err := f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, amount6(100), bobAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, releaseID))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.network.Redeliver(f.ctx, releaseID))
	}

	require.Equal(t, amount6(100).String(), f.sourceBalance(t, bobAddress).String(), "redelivered release must not double-pay")
	custody, err := f.locker.CustodiedBalance(f.ctx, usdtAddress)
	require.NoError(t, err)
	require.Equal(t, "0", custody.String())
}

func TestReleasedWithdrawalSurvivesDestinationRebinding(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	releaseID, err := f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, amount6(100), bobAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, releaseID))

	// Rebind the locker to a different settlement manager, then redeliver
	// the already-released message. The replay guard must answer before the
	// sender check does.
	require.NoError(t, f.locker.UpdateDestination(f.ctx, destDomain+1, bobAddress, "test"))
	require.NoError(t, f.network.Redeliver(f.ctx, releaseID))

	require.Equal(t, amount6(100).String(), f.sourceBalance(t, bobAddress).String(), "redelivery after rebind must not double-pay")
	custody, err := f.locker.CustodiedBalance(f.ctx, usdtAddress)
	require.NoError(t, err)
	require.Equal(t, "0", custody.String())
}

func TestReleaseFromWrongSenderRejected(t *testing.T) {
	f := newFixture(t)
	f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	body := releaseBody(t, usdtAddress, amount6(100), bobAddress)

	// Right origin, wrong sender.
	err = f.locker.HandleMessage(f.ctx, "0x01", destDomain, bobAddress, body)
	require.ErrorIs(t, err, ErrUnauthorizedSender)

	// Right sender, wrong origin.
	err = f.locker.HandleMessage(f.ctx, "0x02", destDomain+1, managerAddress, body)
	require.ErrorIs(t, err, ErrUnauthorizedSender)

	require.Equal(t, "0", f.sourceBalance(t, bobAddress).String())
	custody, err := f.locker.CustodiedBalance(f.ctx, usdtAddress)
	require.NoError(t, err)
	require.Equal(t, amount6(100).String(), custody.String(), "rejected release must not move custody")
}

func TestOutOfOrderSettlementIsOrderIndependent(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 18)
	f.fund(t, aliceAddress, amount6(30))

	first, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(10), aliceAddress)
	require.NoError(t, err)
	second, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(20), bobAddress)
	require.NoError(t, err)

	// Deliver in reverse dispatch order.
	require.NoError(t, f.network.Deliver(f.ctx, second))
	require.NoError(t, f.network.Deliver(f.ctx, first))

	available, err := f.settlement.GetAvailableBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount18(10).String(), available.String())
	available, err = f.settlement.GetAvailableBalance(f.ctx, bobAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount18(20).String(), available.String())
	f.checkConservation(t, synthetic, aliceAddress, bobAddress)
}

func TestLockAndUnlockBalance(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(100))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(100), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	require.NoError(t, f.settlement.LockBalance(f.ctx, aliceAddress, synthetic, amount6(70)))
	available, locked, err := f.settlement.GetBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount6(30).String(), available.String())
	require.Equal(t, amount6(70).String(), locked.String())

	// Locked funds are not withdrawable.
	_, err = f.settlement.RequestWithdrawal(f.ctx, aliceAddress, synthetic, amount6(31), aliceAddress)
	require.ErrorIs(t, err, ErrInsufficientAvailable)

	require.ErrorIs(t, f.settlement.LockBalance(f.ctx, aliceAddress, synthetic, amount6(31)), ErrInsufficientAvailable)
	require.ErrorIs(t, f.settlement.UnlockBalance(f.ctx, aliceAddress, synthetic, amount6(71)), ErrInsufficientAvailable)
	require.ErrorIs(t, f.settlement.LockBalance(f.ctx, aliceAddress, synthetic, big.NewInt(0)), ErrInvalidAmount)

	require.NoError(t, f.settlement.UnlockBalance(f.ctx, aliceAddress, synthetic, amount6(70)))
	available, locked, err = f.settlement.GetBalance(f.ctx, aliceAddress, synthetic)
	require.NoError(t, err)
	require.Equal(t, amount6(100).String(), available.String())
	require.Equal(t, "0", locked.String())
	f.checkConservation(t, synthetic, aliceAddress)
}

func TestListBalances(t *testing.T) {
	f := newFixture(t)
	synthetic := f.configure(t, 6)
	f.fund(t, aliceAddress, amount6(5))

	id, err := f.locker.Deposit(f.ctx, aliceAddress, usdtAddress, amount6(5), aliceAddress)
	require.NoError(t, err)
	require.NoError(t, f.network.Deliver(f.ctx, id))

	entries, err := f.settlement.ListBalances(f.ctx, aliceAddress)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, utils.MustNormalizeAddress(synthetic), entries[0].SyntheticToken)
	require.Equal(t, amount6(5).String(), entries[0].Available)
	require.Equal(t, "0", entries[0].Locked)
}
