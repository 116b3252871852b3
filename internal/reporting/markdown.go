package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Pool Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Pools: %d\n\n", r.PoolCount))

	// Pools
	sb.WriteString("## Pools\n\n")
	if len(r.Pools) > 0 {
		sb.WriteString("| Pool | State | Outcome | Contributed (ETH) | Spent (ETH) | Redeemable (ETH) | Excess (ETH) | Balance (ETH) | Redeemed (ETH) | Contributors | Redemptions |\n")
		sb.WriteString("|------|-------|---------|-------------------|-------------|------------------|--------------|---------------|----------------|--------------|-------------|\n")
		for _, p := range r.Pools {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %d | %d |\n",
				p.PoolID, p.State, p.Outcome,
				p.TotalContributed, p.SpentOnBid, p.Redeemable, p.Excess, p.EthBalance, p.TotalRedeemed,
				p.Contributors, p.Redemptions))
		}
		sb.WriteString(fmt.Sprintf("| **Total** | | | %s | %s | %s | %s | %s | %s | | |\n",
			Totals(r.Pools, func(p PoolRow) decimal.Decimal { return p.TotalContributed }),
			Totals(r.Pools, func(p PoolRow) decimal.Decimal { return p.SpentOnBid }),
			Totals(r.Pools, func(p PoolRow) decimal.Decimal { return p.Redeemable }),
			Totals(r.Pools, func(p PoolRow) decimal.Decimal { return p.Excess }),
			Totals(r.Pools, func(p PoolRow) decimal.Decimal { return p.EthBalance }),
			Totals(r.Pools, func(p PoolRow) decimal.Decimal { return p.TotalRedeemed })))
	} else {
		sb.WriteString("No pools indexed.\n")
	}
	sb.WriteString("\n")

	// Contributors
	sb.WriteString("## Contributors\n\n")
	if len(r.Contributors) > 0 {
		sb.WriteString("| Pool | Contributor | Contributed (ETH) | Excess (ETH) | Refunded (ETH) | Tokens Burned | Redeemed (ETH) |\n")
		sb.WriteString("|------|-------------|-------------------|--------------|----------------|---------------|----------------|\n")
		for _, c := range r.Contributors {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
				c.PoolID, c.Contributor, c.Contributed, c.Excess, c.Refunded, c.TokensBurned, c.Redeemed))
		}
	} else {
		sb.WriteString("No contributions.\n")
	}
	sb.WriteString("\n")

	// Integrity
	sb.WriteString("## Integrity\n\n")
	if len(r.IntegrityErrors) == 0 {
		sb.WriteString("Stored rows agree with every account snapshot.\n")
	} else {
		for _, e := range r.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}

	return sb.String()
}
