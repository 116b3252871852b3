package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// Generator produces reports from stored pool projections.
type Generator struct {
	accounts      storage.AccountStore
	contributions storage.ContributionStore
	redemptions   storage.RedemptionStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	accounts storage.AccountStore,
	contributions storage.ContributionStore,
	redemptions storage.RedemptionStore,
) *Generator {
	return &Generator{
		accounts:      accounts,
		contributions: contributions,
		redemptions:   redemptions,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report over every stored pool.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	accounts, err := g.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	r := &Report{
		GeneratedAt: g.now(),
		PoolCount:   len(accounts),
	}
	for _, a := range accounts {
		if err := g.addPool(ctx, r, a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

type position struct {
	contributed, excess, refunded, burned, redeemed *uint256.Int
}

func newPosition() *position {
	return &position{
		contributed: domain.Zero(),
		excess:      domain.Zero(),
		refunded:    domain.Zero(),
		burned:      domain.Zero(),
		redeemed:    domain.Zero(),
	}
}

func (g *Generator) addPool(ctx context.Context, r *Report, a *domain.PoolAccount) error {
	contribs, err := g.contributions.GetByPool(ctx, a.PoolID)
	if err != nil {
		return fmt.Errorf("load contributions of %s: %w", a.PoolID, err)
	}
	redemptions, err := g.redemptions.GetByPool(ctx, a.PoolID)
	if err != nil {
		return fmt.Errorf("load redemptions of %s: %w", a.PoolID, err)
	}

	positions := make(map[common.Address]*position)
	get := func(addr common.Address) *position {
		p, ok := positions[addr]
		if !ok {
			p = newPosition()
			positions[addr] = p
		}
		return p
	}

	pooled, outstandingExcess, redeemed := domain.Zero(), domain.Zero(), domain.Zero()
	for _, c := range contribs {
		p := get(c.Contributor)
		switch {
		case !c.Excess:
			p.contributed.Add(p.contributed, c.Amount)
			pooled.Add(pooled, c.Amount)
		case c.Refunded:
			p.excess.Add(p.excess, c.Amount)
			p.refunded.Add(p.refunded, c.Amount)
		default:
			p.excess.Add(p.excess, c.Amount)
			outstandingExcess.Add(outstandingExcess, c.Amount)
		}
	}
	for _, rec := range redemptions {
		p := get(rec.Holder)
		p.burned.Add(p.burned, rec.TokensBurned)
		p.redeemed.Add(p.redeemed, rec.EthPaid)
		redeemed.Add(redeemed, rec.EthPaid)
	}

	check := func(name string, stored, derived *uint256.Int) {
		if !domain.CloneAmount(stored).Eq(derived) {
			r.IntegrityErrors = append(r.IntegrityErrors, fmt.Sprintf(
				"%s: %s is %s wei but stored rows sum to %s wei", a.PoolID, name, domain.CloneAmount(stored).Dec(), derived.Dec()))
		}
	}
	check("total_contributed", a.TotalContributed, pooled)
	check("excess_contributions", a.ExcessContributions, outstandingExcess)
	check("total_redeemed", a.TotalRedeemed, redeemed)
	if a.ContributionCount != uint64(len(contribs)) {
		r.IntegrityErrors = append(r.IntegrityErrors, fmt.Sprintf(
			"%s: contribution_count is %d but %d rows are stored", a.PoolID, a.ContributionCount, len(contribs)))
	}

	var contributors int
	for _, p := range positions {
		if !p.contributed.IsZero() || !p.excess.IsZero() {
			contributors++
		}
	}

	r.Pools = append(r.Pools, PoolRow{
		PoolID:           a.PoolID,
		State:            a.State.String(),
		Outcome:          a.Outcome.String(),
		TotalContributed: Eth(a.TotalContributed),
		SpentOnBid:       Eth(a.TotalSpentOnBid),
		Redeemable:       Eth(a.RedeemableEthBalance),
		Excess:           Eth(a.ExcessContributions),
		EthBalance:       Eth(a.EthBalance),
		TotalRedeemed:    Eth(a.TotalRedeemed),
		Contributors:     contributors,
		Contributions:    len(contribs),
		Redemptions:      len(redemptions),
		UpdatedAt:        a.UpdatedAt,
	})

	rows := make([]ContributorRow, 0, len(positions))
	for addr, p := range positions {
		rows = append(rows, ContributorRow{
			PoolID:       a.PoolID,
			Contributor:  addr.Hex(),
			Contributed:  Eth(p.contributed),
			Excess:       Eth(p.excess),
			Refunded:     Eth(p.refunded),
			TokensBurned: Eth(p.burned),
			Redeemed:     Eth(p.redeemed),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Contributor < rows[j].Contributor
	})
	r.Contributors = append(r.Contributors, rows...)
	return nil
}

// Totals sums a column across pool rows.
func Totals(rows []PoolRow, column func(PoolRow) decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(column(row))
	}
	return sum
}
