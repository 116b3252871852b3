package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RedemptionRecord is the append-only audit entry of one redemption.
type RedemptionRecord struct {
	ID           string         // deterministic hash
	PoolID       string         // owning pool
	Holder       common.Address // token holder who burned
	TokensBurned *uint256.Int   // claim-token units burned
	EthPaid      *uint256.Int   // wei paid out
	Seq          uint64         // 0-based order within the pool
	Timestamp    int64          // unix ms
}

// Clone returns a deep copy.
func (r RedemptionRecord) Clone() RedemptionRecord {
	r.TokensBurned = CloneAmount(r.TokensBurned)
	r.EthPaid = CloneAmount(r.EthPaid)
	return r
}
