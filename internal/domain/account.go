package domain

import (
	"github.com/holiman/uint256"
)

// PoolAccount is a point-in-time snapshot of a pool's accounting state.
type PoolAccount struct {
	PoolID string
	State  PoolState

	TotalContributed      *uint256.Int // pooled contributions (excess excluded)
	TotalSpentOnBid       *uint256.Int // optimistic bid cap until finalized, then the final price
	ClaimTokenTotalSupply *uint256.Int // outstanding claim tokens
	Outcome               Outcome

	BidCap               *uint256.Int // amount submitted with the current bid
	RedeemableEthBalance *uint256.Int // leftover pooled funds still claimable pro-rata
	ExcessContributions  *uint256.Int // outstanding non-pooled, 1:1 refundable funds
	EthBalance           *uint256.Int // native currency currently held by the pool
	Deposited            *uint256.Int // post-finalization deposits added to the redeemable balance
	TotalRedeemed        *uint256.Int // sum of all redemption payouts
	EmergencyWithdrawn   *uint256.Int // sum of emergency withdrawals

	ContributionCount uint64
	RedemptionCount   uint64
	EventCount        uint64
	UpdatedAt         int64 // unix ms
}

// Clone returns a deep copy.
func (a PoolAccount) Clone() PoolAccount {
	a.TotalContributed = CloneAmount(a.TotalContributed)
	a.TotalSpentOnBid = CloneAmount(a.TotalSpentOnBid)
	a.ClaimTokenTotalSupply = CloneAmount(a.ClaimTokenTotalSupply)
	a.Outcome = a.Outcome.Clone()
	a.BidCap = CloneAmount(a.BidCap)
	a.RedeemableEthBalance = CloneAmount(a.RedeemableEthBalance)
	a.ExcessContributions = CloneAmount(a.ExcessContributions)
	a.EthBalance = CloneAmount(a.EthBalance)
	a.Deposited = CloneAmount(a.Deposited)
	a.TotalRedeemed = CloneAmount(a.TotalRedeemed)
	a.EmergencyWithdrawn = CloneAmount(a.EmergencyWithdrawn)
	return a
}

// Equal compares two snapshots field by field, ignoring UpdatedAt.
func (a PoolAccount) Equal(b PoolAccount) bool {
	return a.PoolID == b.PoolID &&
		a.State == b.State &&
		amountEq(a.TotalContributed, b.TotalContributed) &&
		amountEq(a.TotalSpentOnBid, b.TotalSpentOnBid) &&
		amountEq(a.ClaimTokenTotalSupply, b.ClaimTokenTotalSupply) &&
		a.Outcome.Kind == b.Outcome.Kind &&
		amountEq(a.Outcome.Price, b.Outcome.Price) &&
		amountEq(a.BidCap, b.BidCap) &&
		amountEq(a.RedeemableEthBalance, b.RedeemableEthBalance) &&
		amountEq(a.ExcessContributions, b.ExcessContributions) &&
		amountEq(a.EthBalance, b.EthBalance) &&
		amountEq(a.Deposited, b.Deposited) &&
		amountEq(a.TotalRedeemed, b.TotalRedeemed) &&
		amountEq(a.EmergencyWithdrawn, b.EmergencyWithdrawn) &&
		a.ContributionCount == b.ContributionCount &&
		a.RedemptionCount == b.RedemptionCount &&
		a.EventCount == b.EventCount
}

func amountEq(a, b *uint256.Int) bool {
	return CloneAmount(a).Eq(CloneAmount(b))
}
