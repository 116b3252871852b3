package reporting

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Report is a point-in-time snapshot of indexed pools.
type Report struct {
	GeneratedAt time.Time
	PoolCount   int

	// Sorted by pool_id
	Pools []PoolRow

	// Sorted by pool_id, then contributor
	Contributors []ContributorRow

	// Disagreements between stored rows and stored account snapshots
	IntegrityErrors []string
}

// PoolRow summarizes one pool. Currency columns are in ETH.
type PoolRow struct {
	PoolID           string
	State            string
	Outcome          string
	TotalContributed decimal.Decimal
	SpentOnBid       decimal.Decimal
	Redeemable       decimal.Decimal
	Excess           decimal.Decimal
	EthBalance       decimal.Decimal
	TotalRedeemed    decimal.Decimal
	Contributors     int
	Contributions    int
	Redemptions      int
	UpdatedAt        int64 // Unix ms
}

// ContributorRow is one contributor's position in one pool.
type ContributorRow struct {
	PoolID       string
	Contributor  string
	Contributed  decimal.Decimal // pooled
	Excess       decimal.Decimal // late contributions, refunded or not
	Refunded     decimal.Decimal
	TokensBurned decimal.Decimal // claim-token units, in 1e18 units
	Redeemed     decimal.Decimal
}

// Eth converts wei to ETH without loss.
func Eth(wei *uint256.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei.ToBig(), -18)
}
