package utils

import "fmt"

// ChainInfo describes one transport domain. The domain id is the
// transport-assigned identifier, not necessarily the chain's native chain id;
// the two being confused is a recurring operational incident, so both are
// recorded here.
type ChainInfo struct {
	DomainID         uint32 `json:"domain_id"`
	NativeChainID    uint32 `json:"native_chain_id"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	BlockTimeHintSec uint16 `json:"block_time_hint_sec"`
	ExplorerURL      string `json:"explorer_url"`
}

// ChainRegistry is the static directory of well-known domains. Operators and
// configuration validation use it; the settlement hot path never does.
type ChainRegistry struct {
	byDomain map[uint32]*ChainInfo
	byNative map[uint32]*ChainInfo
}

var GlobalChainRegistry *ChainRegistry

func init() {
	GlobalChainRegistry = &ChainRegistry{
		byDomain: make(map[uint32]*ChainInfo),
		byNative: make(map[uint32]*ChainInfo),
	}

	chains := []*ChainInfo{
		{
			DomainID:         1,
			NativeChainID:    1,
			Name:             "Ethereum",
			Symbol:           "ETH",
			BlockTimeHintSec: 12,
			ExplorerURL:      "https://etherscan.io",
		},
		{
			DomainID:         56,
			NativeChainID:    56,
			Name:             "BSC",
			Symbol:           "BNB",
			BlockTimeHintSec: 3,
			ExplorerURL:      "https://bscscan.com",
		},
		{
			DomainID:         137,
			NativeChainID:    137,
			Name:             "Polygon",
			Symbol:           "MATIC",
			BlockTimeHintSec: 2,
			ExplorerURL:      "https://polygonscan.com",
		},
		{
			DomainID:         42161,
			NativeChainID:    42161,
			Name:             "Arbitrum",
			Symbol:           "ETH",
			BlockTimeHintSec: 1,
			ExplorerURL:      "https://arbiscan.io",
		},
		{
			DomainID:         10,
			NativeChainID:    10,
			Name:             "Optimism",
			Symbol:           "ETH",
			BlockTimeHintSec: 2,
			ExplorerURL:      "https://optimistic.etherscan.io",
		},
		{
			DomainID:         8453,
			NativeChainID:    8453,
			Name:             "Base",
			Symbol:           "ETH",
			BlockTimeHintSec: 2,
			ExplorerURL:      "https://basescan.org",
		},
		{
			DomainID:         43114,
			NativeChainID:    43114,
			Name:             "Avalanche",
			Symbol:           "AVAX",
			BlockTimeHintSec: 2,
			ExplorerURL:      "https://snowtrace.io",
		},
	}

	for _, chain := range chains {
		GlobalChainRegistry.byDomain[chain.DomainID] = chain
		GlobalChainRegistry.byNative[chain.NativeChainID] = chain
	}
}

// GetByDomain looks up a chain by transport domain id.
func (r *ChainRegistry) GetByDomain(domain uint32) (*ChainInfo, bool) {
	info, ok := r.byDomain[domain]
	return info, ok
}

// GetByNative looks up a chain by its native chain id.
func (r *ChainRegistry) GetByNative(native uint32) (*ChainInfo, bool) {
	info, ok := r.byNative[native]
	return info, ok
}

// DomainName returns a display name for logs and API responses.
func (r *ChainRegistry) DomainName(domain uint32) string {
	if info, ok := r.byDomain[domain]; ok {
		return info.Name
	}
	return fmt.Sprintf("Unknown(%d)", domain)
}

// GetAllChains lists every registered chain.
func (r *ChainRegistry) GetAllChains() []*ChainInfo {
	chains := make([]*ChainInfo, 0, len(r.byDomain))
	for _, chain := range r.byDomain {
		chains = append(chains, chain)
	}
	return chains
}
