package repository

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"settlement-backend/internal/models"
	"settlement-backend/internal/utils"
)

// MemoryStore is a Store held entirely in process memory. It backs tests
// and the local single-process mode. Atomic clones the state and swaps the
// clone in only on success, giving the same all-or-nothing semantics as a
// database transaction.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	inTx bool
}

type ledgerBalance struct {
	available *big.Int
	locked    *big.Int
}

type memData struct {
	mappings        map[string]*models.TokenMapping
	accounts        map[string]*big.Int
	nonces          map[string]uint64
	ledger          map[string]*ledgerBalance
	processed       map[string]*models.ProcessedMessage
	dispatches      []*models.DispatchRecord
	settlements     map[string]*models.SettlementRecord
	tokens          map[string]*models.SyntheticToken
	chainConfigs    map[uint32]*models.ChainConfig
	lockerDests     map[uint32]*models.LockerDestination
	balanceManagers map[uint32]*models.ChainBalanceManager
	lockerTokens    map[string]*models.LockerToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func newMemData() *memData {
	return &memData{
		mappings:        make(map[string]*models.TokenMapping),
		accounts:        make(map[string]*big.Int),
		nonces:          make(map[string]uint64),
		ledger:          make(map[string]*ledgerBalance),
		processed:       make(map[string]*models.ProcessedMessage),
		settlements:     make(map[string]*models.SettlementRecord),
		tokens:          make(map[string]*models.SyntheticToken),
		chainConfigs:    make(map[uint32]*models.ChainConfig),
		lockerDests:     make(map[uint32]*models.LockerDestination),
		balanceManagers: make(map[uint32]*models.ChainBalanceManager),
		lockerTokens:    make(map[string]*models.LockerToken),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.mappings {
		m := *v
		c.mappings[k] = &m
	}
	for k, v := range d.accounts {
		c.accounts[k] = new(big.Int).Set(v)
	}
	for k, v := range d.nonces {
		c.nonces[k] = v
	}
	for k, v := range d.ledger {
		c.ledger[k] = &ledgerBalance{
			available: new(big.Int).Set(v.available),
			locked:    new(big.Int).Set(v.locked),
		}
	}
	for k, v := range d.processed {
		m := *v
		c.processed[k] = &m
	}
	c.dispatches = make([]*models.DispatchRecord, len(d.dispatches))
	for i, v := range d.dispatches {
		m := *v
		c.dispatches[i] = &m
	}
	for k, v := range d.settlements {
		m := *v
		c.settlements[k] = &m
	}
	for k, v := range d.tokens {
		m := *v
		c.tokens[k] = &m
	}
	for k, v := range d.chainConfigs {
		m := *v
		c.chainConfigs[k] = &m
	}
	for k, v := range d.lockerDests {
		m := *v
		c.lockerDests[k] = &m
	}
	for k, v := range d.balanceManagers {
		m := *v
		c.balanceManagers[k] = &m
	}
	for k, v := range d.lockerTokens {
		m := *v
		c.lockerTokens[k] = &m
	}
	return c
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Atomic runs fn against a clone of the state; the clone replaces the live
// state only if fn succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.data.clone()
	tx := &MemoryStore{data: clone, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = clone
	return nil
}

func mappingKey(sourceChainID uint32, sourceToken string, targetChainID uint32) string {
	return fmt.Sprintf("%d|%s|%d", sourceChainID, sourceToken, targetChainID)
}

func accountKey(chainID uint32, token, holder string) string {
	return fmt.Sprintf("%d|%s|%s", chainID, token, holder)
}

func ledgerKey(user, token string) string {
	return user + "|" + token
}

func chainTokenKey(chainID uint32, token string) string {
	return fmt.Sprintf("%d|%s", chainID, token)
}

// --- MappingRepository ---

func (s *MemoryStore) CreateMapping(ctx context.Context, m *models.TokenMapping) error {
	defer s.lock()()
	key := mappingKey(m.SourceChainID, m.SourceToken, m.TargetChainID)
	if _, ok := s.data.mappings[key]; ok {
		return ErrDuplicate
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	copied := *m
	s.data.mappings[key] = &copied
	return nil
}

func (s *MemoryStore) UpdateMapping(ctx context.Context, m *models.TokenMapping) error {
	defer s.lock()()
	key := mappingKey(m.SourceChainID, m.SourceToken, m.TargetChainID)
	existing, ok := s.data.mappings[key]
	if !ok {
		return ErrNotFound
	}
	existing.SyntheticToken = m.SyntheticToken
	existing.SourceDecimals = m.SourceDecimals
	existing.SyntheticDecimals = m.SyntheticDecimals
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetMapping(ctx context.Context, sourceChainID uint32, sourceToken string, targetChainID uint32) (*models.TokenMapping, error) {
	defer s.lock()()
	m, ok := s.data.mappings[mappingKey(sourceChainID, sourceToken, targetChainID)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *MemoryStore) GetReverseMapping(ctx context.Context, syntheticToken string, targetChainID uint32) (*models.TokenMapping, error) {
	defer s.lock()()
	for _, m := range s.data.mappings {
		if m.SyntheticToken == syntheticToken && m.TargetChainID == targetChainID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListMappings(ctx context.Context) ([]*models.TokenMapping, error) {
	defer s.lock()()
	out := make([]*models.TokenMapping, 0, len(s.data.mappings))
	for _, m := range s.data.mappings {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceChainID != out[j].SourceChainID {
			return out[i].SourceChainID < out[j].SourceChainID
		}
		return out[i].SourceToken < out[j].SourceToken
	})
	return out, nil
}

// --- AccountRepository ---

func (s *MemoryStore) AccountBalance(ctx context.Context, chainID uint32, token, holder string) (*big.Int, error) {
	defer s.lock()()
	if balance, ok := s.data.accounts[accountKey(chainID, token, holder)]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

func (s *MemoryStore) CreditAccount(ctx context.Context, chainID uint32, token, holder string, amount *big.Int) error {
	defer s.lock()()
	key := accountKey(chainID, token, holder)
	balance, ok := s.data.accounts[key]
	if !ok {
		balance = new(big.Int)
		s.data.accounts[key] = balance
	}
	balance.Add(balance, amount)
	return nil
}

func (s *MemoryStore) DebitAccount(ctx context.Context, chainID uint32, token, holder string, amount *big.Int) error {
	defer s.lock()()
	key := accountKey(chainID, token, holder)
	balance, ok := s.data.accounts[key]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, amount)
	return nil
}

func (s *MemoryStore) NextUserNonce(ctx context.Context, chainID uint32, user string) (uint64, error) {
	defer s.lock()()
	key := fmt.Sprintf("%d|%s", chainID, user)
	s.data.nonces[key]++
	return s.data.nonces[key], nil
}

// --- LedgerRepository ---

func (s *MemoryStore) ledgerEntry(user, token string) *ledgerBalance {
	key := ledgerKey(user, token)
	entry, ok := s.data.ledger[key]
	if !ok {
		entry = &ledgerBalance{available: new(big.Int), locked: new(big.Int)}
		s.data.ledger[key] = entry
	}
	return entry
}

func (s *MemoryStore) LedgerBalances(ctx context.Context, user, syntheticToken string) (*big.Int, *big.Int, error) {
	defer s.lock()()
	if entry, ok := s.data.ledger[ledgerKey(user, syntheticToken)]; ok {
		return new(big.Int).Set(entry.available), new(big.Int).Set(entry.locked), nil
	}
	return new(big.Int), new(big.Int), nil
}

func (s *MemoryStore) CreditAvailable(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	defer s.lock()()
	entry := s.ledgerEntry(user, syntheticToken)
	entry.available.Add(entry.available, amount)
	return nil
}

func (s *MemoryStore) DebitAvailable(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	defer s.lock()()
	entry := s.ledgerEntry(user, syntheticToken)
	if entry.available.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	entry.available.Sub(entry.available, amount)
	return nil
}

func (s *MemoryStore) LockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	defer s.lock()()
	entry := s.ledgerEntry(user, syntheticToken)
	if entry.available.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	entry.available.Sub(entry.available, amount)
	entry.locked.Add(entry.locked, amount)
	return nil
}

func (s *MemoryStore) UnlockBalance(ctx context.Context, user, syntheticToken string, amount *big.Int) error {
	defer s.lock()()
	entry := s.ledgerEntry(user, syntheticToken)
	if entry.locked.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	entry.locked.Sub(entry.locked, amount)
	entry.available.Add(entry.available, amount)
	return nil
}

func (s *MemoryStore) ListLedgerEntries(ctx context.Context, user string) ([]*models.LedgerEntry, error) {
	defer s.lock()()
	var out []*models.LedgerEntry
	prefix := user + "|"
	for key, entry := range s.data.ledger {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, &models.LedgerEntry{
			User:           user,
			SyntheticToken: strings.TrimPrefix(key, prefix),
			Available:      utils.FormatAmount(entry.available),
			Locked:         utils.FormatAmount(entry.locked),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SyntheticToken < out[j].SyntheticToken })
	return out, nil
}

// --- MessageRepository ---

func (s *MemoryStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	defer s.lock()()
	_, ok := s.data.processed[messageID]
	return ok, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, msg *models.ProcessedMessage) error {
	defer s.lock()()
	if _, ok := s.data.processed[msg.MessageID]; ok {
		return ErrDuplicate
	}
	msg.ProcessedAt = time.Now()
	copied := *msg
	s.data.processed[msg.MessageID] = &copied
	return nil
}

func (s *MemoryStore) CreateDispatchRecord(ctx context.Context, rec *models.DispatchRecord) error {
	defer s.lock()()
	rec.CreatedAt = time.Now()
	copied := *rec
	s.data.dispatches = append(s.data.dispatches, &copied)
	return nil
}

func (s *MemoryStore) FindDispatchByMessageID(ctx context.Context, messageID string) (*models.DispatchRecord, error) {
	defer s.lock()()
	for _, rec := range s.data.dispatches {
		if rec.MessageID == messageID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateSettlementRecord(ctx context.Context, rec *models.SettlementRecord) error {
	defer s.lock()()
	rec.CreatedAt = time.Now()
	copied := *rec
	s.data.settlements[rec.MessageID] = &copied
	return nil
}

func (s *MemoryStore) FindSettlementByMessageID(ctx context.Context, messageID string) (*models.SettlementRecord, error) {
	defer s.lock()()
	rec, ok := s.data.settlements[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// --- TokenRepository ---

func (s *MemoryStore) CreateSyntheticToken(ctx context.Context, token *models.SyntheticToken) error {
	defer s.lock()()
	if _, ok := s.data.tokens[token.Address]; ok {
		return ErrDuplicate
	}
	token.CreatedAt = time.Now()
	token.UpdatedAt = token.CreatedAt
	copied := *token
	s.data.tokens[token.Address] = &copied
	return nil
}

func (s *MemoryStore) GetSyntheticToken(ctx context.Context, address string) (*models.SyntheticToken, error) {
	defer s.lock()()
	token, ok := s.data.tokens[address]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (s *MemoryStore) AdjustSupply(ctx context.Context, address string, delta *big.Int) error {
	defer s.lock()()
	token, ok := s.data.tokens[address]
	if !ok {
		return ErrNotFound
	}
	supply, err := utils.ParseAmount(token.TotalSupply)
	if err != nil {
		return err
	}
	supply.Add(supply, delta)
	if supply.Sign() < 0 {
		return ErrInsufficientBalance
	}
	token.TotalSupply = utils.FormatAmount(supply)
	token.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListSyntheticTokens(ctx context.Context) ([]*models.SyntheticToken, error) {
	defer s.lock()()
	out := make([]*models.SyntheticToken, 0, len(s.data.tokens))
	for _, token := range s.data.tokens {
		copied := *token
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// --- ConfigRepository ---

func (s *MemoryStore) UpsertChainConfig(ctx context.Context, cfg *models.ChainConfig) error {
	defer s.lock()()
	existing, ok := s.data.chainConfigs[cfg.DomainID]
	if !ok {
		cfg.Version = 1
		cfg.CreatedAt = time.Now()
		copied := *cfg
		s.data.chainConfigs[cfg.DomainID] = &copied
		return nil
	}
	existing.Mailbox = cfg.Mailbox
	existing.DisplayName = cfg.DisplayName
	existing.BlockTimeHintSec = cfg.BlockTimeHintSec
	existing.UpdatedBy = cfg.UpdatedBy
	existing.Version++
	existing.UpdatedAt = time.Now()
	*cfg = *existing
	return nil
}

func (s *MemoryStore) GetChainConfig(ctx context.Context, domainID uint32) (*models.ChainConfig, error) {
	defer s.lock()()
	cfg, ok := s.data.chainConfigs[domainID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (s *MemoryStore) ListChainConfigs(ctx context.Context) ([]*models.ChainConfig, error) {
	defer s.lock()()
	out := make([]*models.ChainConfig, 0, len(s.data.chainConfigs))
	for _, cfg := range s.data.chainConfigs {
		copied := *cfg
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DomainID < out[j].DomainID })
	return out, nil
}

func (s *MemoryStore) GetLockerDestination(ctx context.Context, chainID uint32) (*models.LockerDestination, error) {
	defer s.lock()()
	dest, ok := s.data.lockerDests[chainID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *dest
	return &copied, nil
}

func (s *MemoryStore) SetLockerDestination(ctx context.Context, dest *models.LockerDestination) error {
	defer s.lock()()
	existing, ok := s.data.lockerDests[dest.ChainID]
	if !ok {
		dest.Version = 1
		dest.CreatedAt = time.Now()
		copied := *dest
		s.data.lockerDests[dest.ChainID] = &copied
		return nil
	}
	existing.DestinationDomain = dest.DestinationDomain
	existing.SettlementManager = dest.SettlementManager
	existing.UpdatedBy = dest.UpdatedBy
	existing.Version++
	existing.UpdatedAt = time.Now()
	*dest = *existing
	return nil
}

func (s *MemoryStore) GetChainBalanceManager(ctx context.Context, originDomain uint32) (*models.ChainBalanceManager, error) {
	defer s.lock()()
	mgr, ok := s.data.balanceManagers[originDomain]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *mgr
	return &copied, nil
}

func (s *MemoryStore) SetChainBalanceManager(ctx context.Context, mgr *models.ChainBalanceManager) error {
	defer s.lock()()
	existing, ok := s.data.balanceManagers[mgr.OriginDomain]
	if !ok {
		mgr.CreatedAt = time.Now()
		copied := *mgr
		s.data.balanceManagers[mgr.OriginDomain] = &copied
		return nil
	}
	existing.LockerAddress = mgr.LockerAddress
	existing.UpdatedBy = mgr.UpdatedBy
	existing.UpdatedAt = time.Now()
	*mgr = *existing
	return nil
}

func (s *MemoryStore) ListChainBalanceManagers(ctx context.Context) ([]*models.ChainBalanceManager, error) {
	defer s.lock()()
	out := make([]*models.ChainBalanceManager, 0, len(s.data.balanceManagers))
	for _, mgr := range s.data.balanceManagers {
		copied := *mgr
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginDomain < out[j].OriginDomain })
	return out, nil
}

func (s *MemoryStore) AddLockerToken(ctx context.Context, token *models.LockerToken) error {
	defer s.lock()()
	key := chainTokenKey(token.ChainID, token.Token)
	if _, ok := s.data.lockerTokens[key]; ok {
		return ErrDuplicate
	}
	token.CreatedAt = time.Now()
	copied := *token
	s.data.lockerTokens[key] = &copied
	return nil
}

func (s *MemoryStore) RemoveLockerToken(ctx context.Context, chainID uint32, token string) error {
	defer s.lock()()
	key := chainTokenKey(chainID, token)
	if _, ok := s.data.lockerTokens[key]; !ok {
		return ErrNotFound
	}
	delete(s.data.lockerTokens, key)
	return nil
}

func (s *MemoryStore) IsTokenWhitelisted(ctx context.Context, chainID uint32, token string) (bool, error) {
	defer s.lock()()
	_, ok := s.data.lockerTokens[chainTokenKey(chainID, token)]
	return ok, nil
}

func (s *MemoryStore) ListLockerTokens(ctx context.Context, chainID uint32) ([]*models.LockerToken, error) {
	defer s.lock()()
	var out []*models.LockerToken
	for _, token := range s.data.lockerTokens {
		if token.ChainID == chainID {
			copied := *token
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}
