package domain

// Chain ids with a known profile.
const (
	ChainFoundry         uint64 = 31337
	ChainSepolia         uint64 = 11155111
	ChainOptimismSepolia uint64 = 11155420
	ChainArbitrumSepolia uint64 = 421614
	ChainMantleSepolia   uint64 = 5003
)

// ChainProfile holds per-network constants used when deploying and when
// converting durations to block counts.
type ChainProfile struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	BlocksPerHour uint64 `json:"blocksPerHour"`
	Confirmations uint64 `json:"confirmations"`
	// IndexingLag marks chains whose RPC nodes lag behind receipts; the
	// sequencer pauses after each confirmed transaction on them.
	IndexingLag bool `json:"indexingLag"`
}

var chainProfiles = map[uint64]ChainProfile{
	ChainFoundry:         {ID: ChainFoundry, Name: "Foundry", BlocksPerHour: 3600, Confirmations: 1, IndexingLag: true},
	ChainSepolia:         {ID: ChainSepolia, Name: "Ethereum Sepolia", BlocksPerHour: 300, Confirmations: 2, IndexingLag: true},
	ChainOptimismSepolia: {ID: ChainOptimismSepolia, Name: "Optimism Sepolia", BlocksPerHour: 1800, Confirmations: 2, IndexingLag: true},
	ChainArbitrumSepolia: {ID: ChainArbitrumSepolia, Name: "Arbitrum Sepolia", BlocksPerHour: 14400, Confirmations: 2, IndexingLag: true},
	ChainMantleSepolia:   {ID: ChainMantleSepolia, Name: "Mantle Sepolia", BlocksPerHour: 1800, Confirmations: 2},
}

// LookupChain returns the profile of a chain. Unknown chains get two
// confirmations and an Ethereum-like block time.
func LookupChain(id uint64) ChainProfile {
	if p, ok := chainProfiles[id]; ok {
		return p
	}
	return ChainProfile{ID: id, Name: "Unknown", BlocksPerHour: 300, Confirmations: 2}
}

// KnownChains returns every chain with a registered profile.
func KnownChains() []ChainProfile {
	out := make([]ChainProfile, 0, len(chainProfiles))
	for _, id := range []uint64{ChainSepolia, ChainOptimismSepolia, ChainArbitrumSepolia, ChainMantleSepolia, ChainFoundry} {
		out = append(out, chainProfiles[id])
	}
	return out
}
