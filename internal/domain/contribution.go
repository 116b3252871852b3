package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Contribution is a single deposit into a pool.
// Immutable once recorded, except for the Refunded flag on excess contributions.
type Contribution struct {
	ID          string         // deterministic hash
	PoolID      string         // owning pool
	Contributor common.Address // depositor
	Amount      *uint256.Int   // wei, > 0
	Seq         uint64         // 0-based order of arrival within the pool
	Excess      bool           // arrived after the bid was locked; outside the proportional pool
	Refunded    bool           // excess only: paid back 1:1
	Timestamp   int64          // unix ms
}

// Clone returns a deep copy.
func (c Contribution) Clone() Contribution {
	c.Amount = CloneAmount(c.Amount)
	return c
}
