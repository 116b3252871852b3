// Package ledger records the contributions made to a single pool.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/domain"
	"partybid/internal/idhash"
)

// Ledger is the append-only contribution record of one pool.
// It is not safe for concurrent use; the owning pool serializes access.
type Ledger struct {
	poolID        string
	contributions []domain.Contribution
	order         []common.Address // first-contribution order
	byContributor map[common.Address]*uint256.Int
	total         *uint256.Int // pooled contributions
	excess        *uint256.Int // unrefunded excess contributions
}

// New creates an empty ledger for poolID.
func New(poolID string) *Ledger {
	return &Ledger{
		poolID:        poolID,
		byContributor: make(map[common.Address]*uint256.Int),
		total:         domain.Zero(),
		excess:        domain.Zero(),
	}
}

// Record appends a contribution and updates the running totals.
// Excess contributions are tracked separately from the pooled total.
func (l *Ledger) Record(contributor common.Address, amount *uint256.Int, excess bool, ts int64) (domain.Contribution, error) {
	if amount == nil || amount.IsZero() {
		return domain.Contribution{}, domain.ErrZeroAmount
	}

	bucket := l.total
	if excess {
		bucket = l.excess
	}
	newBucket, err := domain.CheckedAdd(bucket, amount)
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("record contribution: %w", err)
	}

	var newPersonal *uint256.Int
	if !excess {
		newPersonal, err = domain.CheckedAdd(domain.CloneAmount(l.byContributor[contributor]), amount)
		if err != nil {
			return domain.Contribution{}, fmt.Errorf("record contribution: %w", err)
		}
	}

	seq := uint64(len(l.contributions))
	c := domain.Contribution{
		ID:          idhash.ComputeContributionID(l.poolID, seq, contributor.Hex()),
		PoolID:      l.poolID,
		Contributor: contributor,
		Amount:      domain.CloneAmount(amount),
		Seq:         seq,
		Excess:      excess,
		Timestamp:   ts,
	}

	if excess {
		l.excess = newBucket
	} else {
		l.total = newBucket
		if _, seen := l.byContributor[contributor]; !seen {
			l.order = append(l.order, contributor)
		}
		l.byContributor[contributor] = newPersonal
	}
	l.contributions = append(l.contributions, c)

	return c.Clone(), nil
}

// TotalContributed returns the pooled total. O(1).
func (l *Ledger) TotalContributed() *uint256.Int {
	return domain.CloneAmount(l.total)
}

// ExcessContributions returns the outstanding, unrefunded excess total.
func (l *Ledger) ExcessContributions() *uint256.Int {
	return domain.CloneAmount(l.excess)
}

// ContributedBy returns the pooled amount contributed by addr.
func (l *Ledger) ContributedBy(addr common.Address) *uint256.Int {
	return domain.CloneAmount(l.byContributor[addr])
}

// ExcessOf returns the unrefunded excess owed to addr.
func (l *Ledger) ExcessOf(addr common.Address) *uint256.Int {
	out := domain.Zero()
	for _, c := range l.contributions {
		if c.Excess && !c.Refunded && c.Contributor == addr {
			out.Add(out, c.Amount) // bounded by l.excess
		}
	}
	return out
}

// MarkExcessRefunded flags every unrefunded excess contribution of addr as
// refunded and returns the amount owed. Zero means nothing was outstanding.
func (l *Ledger) MarkExcessRefunded(addr common.Address) (*uint256.Int, error) {
	owed := l.ExcessOf(addr)
	if owed.IsZero() {
		return owed, nil
	}
	remaining, err := domain.CheckedSub(l.excess, owed)
	if err != nil {
		return nil, fmt.Errorf("refund excess: %w", err)
	}
	for i := range l.contributions {
		c := &l.contributions[i]
		if c.Excess && !c.Refunded && c.Contributor == addr {
			c.Refunded = true
		}
	}
	l.excess = remaining
	return owed, nil
}

// Contributions returns a copy of every contribution in arrival order.
func (l *Ledger) Contributions() []domain.Contribution {
	out := make([]domain.Contribution, len(l.contributions))
	for i, c := range l.contributions {
		out[i] = c.Clone()
	}
	return out
}

// Contributors returns pooled contributors in order of first contribution.
func (l *Ledger) Contributors() []common.Address {
	out := make([]common.Address, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of recorded contributions.
func (l *Ledger) Len() int {
	return len(l.contributions)
}

// Clone returns a deep copy, used to snapshot the ledger before a mutation.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		poolID:        l.poolID,
		contributions: l.Contributions(),
		order:         l.Contributors(),
		byContributor: make(map[common.Address]*uint256.Int, len(l.byContributor)),
		total:         domain.CloneAmount(l.total),
		excess:        domain.CloneAmount(l.excess),
	}
	for k, v := range l.byContributor {
		out.byContributor[k] = domain.CloneAmount(v)
	}
	return out
}

// CheckInvariants verifies that the running totals match the records.
func (l *Ledger) CheckInvariants() error {
	pooled := domain.Zero()
	excess := domain.Zero()
	perAddr := make(map[common.Address]*uint256.Int)

	for i, c := range l.contributions {
		if c.Seq != uint64(i) {
			return fmt.Errorf("contribution %d has seq %d", i, c.Seq)
		}
		if c.Amount.IsZero() {
			return fmt.Errorf("contribution %d has zero amount", i)
		}
		var err error
		if c.Excess {
			if c.Refunded {
				continue
			}
			if excess, err = domain.CheckedAdd(excess, c.Amount); err != nil {
				return err
			}
			continue
		}
		if c.Refunded {
			return fmt.Errorf("pooled contribution %d flagged as refunded", i)
		}
		if pooled, err = domain.CheckedAdd(pooled, c.Amount); err != nil {
			return err
		}
		sum := domain.CloneAmount(perAddr[c.Contributor])
		perAddr[c.Contributor] = sum.Add(sum, c.Amount)
	}

	if !pooled.Eq(l.total) {
		return fmt.Errorf("pooled sum %s != total contributed %s", pooled.Dec(), l.total.Dec())
	}
	if !excess.Eq(l.excess) {
		return fmt.Errorf("excess sum %s != excess contributions %s", excess.Dec(), l.excess.Dec())
	}
	for addr, want := range perAddr {
		if got := l.byContributor[addr]; got == nil || !got.Eq(want) {
			return fmt.Errorf("contributor %s total mismatch", addr.Hex())
		}
	}
	return nil
}
