package reporting

import (
	"fmt"
	"strings"
)

// RenderPoolsCSV renders pool rows as CSV string. Amounts are ETH with full precision.
func RenderPoolsCSV(rows []PoolRow) string {
	var sb strings.Builder

	sb.WriteString("pool_id,state,outcome,total_contributed,spent_on_bid,redeemable,excess,eth_balance,total_redeemed,")
	sb.WriteString("contributors,contributions,redemptions,updated_at\n")

	for _, p := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%d,%d,%d,%d\n",
			p.PoolID,
			p.State,
			p.Outcome,
			p.TotalContributed,
			p.SpentOnBid,
			p.Redeemable,
			p.Excess,
			p.EthBalance,
			p.TotalRedeemed,
			p.Contributors,
			p.Contributions,
			p.Redemptions,
			p.UpdatedAt,
		))
	}

	return sb.String()
}

// RenderContributorsCSV renders contributor rows as CSV string.
func RenderContributorsCSV(rows []ContributorRow) string {
	var sb strings.Builder

	sb.WriteString("pool_id,contributor,contributed,excess,refunded,tokens_burned,redeemed\n")

	for _, c := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s\n",
			c.PoolID,
			c.Contributor,
			c.Contributed,
			c.Excess,
			c.Refunded,
			c.TokensBurned,
			c.Redeemed,
		))
	}

	return sb.String()
}
