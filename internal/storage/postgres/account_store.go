package postgres

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

const accountColumns = `
	pool_id, state,
	total_contributed::text, total_spent_on_bid::text, claim_token_total_supply::text,
	outcome_kind, outcome_price::text,
	bid_cap::text, redeemable_eth_balance::text, excess_contributions::text,
	eth_balance::text, deposited::text, total_redeemed::text, emergency_withdrawn::text,
	contribution_count, redemption_count, event_count, updated_at
`

// Upsert stores a snapshot unless a newer one is already stored.
func (s *AccountStore) Upsert(ctx context.Context, a *domain.PoolAccount) error {
	if a == nil || a.PoolID == "" || !a.State.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pool_accounts (
			pool_id, state,
			total_contributed, total_spent_on_bid, claim_token_total_supply,
			outcome_kind, outcome_price,
			bid_cap, redeemable_eth_balance, excess_contributions,
			eth_balance, deposited, total_redeemed, emergency_withdrawn,
			contribution_count, redemption_count, event_count, updated_at
		) VALUES (
			$1, $2,
			$3::text::numeric, $4::text::numeric, $5::text::numeric,
			$6, $7::text::numeric,
			$8::text::numeric, $9::text::numeric, $10::text::numeric,
			$11::text::numeric, $12::text::numeric, $13::text::numeric, $14::text::numeric,
			$15, $16, $17, $18
		)
		ON CONFLICT (pool_id) DO UPDATE SET
			state = EXCLUDED.state,
			total_contributed = EXCLUDED.total_contributed,
			total_spent_on_bid = EXCLUDED.total_spent_on_bid,
			claim_token_total_supply = EXCLUDED.claim_token_total_supply,
			outcome_kind = EXCLUDED.outcome_kind,
			outcome_price = EXCLUDED.outcome_price,
			bid_cap = EXCLUDED.bid_cap,
			redeemable_eth_balance = EXCLUDED.redeemable_eth_balance,
			excess_contributions = EXCLUDED.excess_contributions,
			eth_balance = EXCLUDED.eth_balance,
			deposited = EXCLUDED.deposited,
			total_redeemed = EXCLUDED.total_redeemed,
			emergency_withdrawn = EXCLUDED.emergency_withdrawn,
			contribution_count = EXCLUDED.contribution_count,
			redemption_count = EXCLUDED.redemption_count,
			event_count = EXCLUDED.event_count,
			updated_at = EXCLUDED.updated_at
		WHERE pool_accounts.event_count <= EXCLUDED.event_count
	`

	_, err := s.pool.Exec(ctx, query,
		a.PoolID, string(a.State),
		wei(a.TotalContributed), wei(a.TotalSpentOnBid), wei(a.ClaimTokenTotalSupply),
		string(a.Outcome.Kind), wei(a.Outcome.Price),
		wei(a.BidCap), wei(a.RedeemableEthBalance), wei(a.ExcessContributions),
		wei(a.EthBalance), wei(a.Deposited), wei(a.TotalRedeemed), wei(a.EmergencyWithdrawn),
		a.ContributionCount, a.RedemptionCount, a.EventCount, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pool account: %w", err)
	}
	return nil
}

// Get retrieves the snapshot of a pool. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(ctx context.Context, poolID string) (*domain.PoolAccount, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM pool_accounts WHERE pool_id = $1`, poolID)

	a, err := scanAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool account: %w", err)
	}
	return a, nil
}

// List retrieves all snapshots ordered by pool ID.
func (s *AccountStore) List(ctx context.Context) ([]*domain.PoolAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM pool_accounts ORDER BY pool_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pool accounts: %w", err)
	}
	defer rows.Close()

	var result []*domain.PoolAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool account: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool accounts: %w", err)
	}

	return result, nil
}

func scanAccount(row pgx.Row) (*domain.PoolAccount, error) {
	var a domain.PoolAccount
	var state, outcomeKind string
	var contributed, spent, supply, price, bidCap, redeemable string
	var excess, balance, deposited, redeemed, emergencyWithdrawn string
	err := row.Scan(
		&a.PoolID, &state,
		&contributed, &spent, &supply,
		&outcomeKind, &price,
		&bidCap, &redeemable, &excess,
		&balance, &deposited, &redeemed, &emergencyWithdrawn,
		&a.ContributionCount, &a.RedemptionCount, &a.EventCount, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.State = domain.PoolState(state)
	a.Outcome.Kind = domain.OutcomeKind(outcomeKind)

	for _, f := range []struct {
		column string
		text   string
		dst    **uint256.Int
	}{
		{"total_contributed", contributed, &a.TotalContributed},
		{"total_spent_on_bid", spent, &a.TotalSpentOnBid},
		{"claim_token_total_supply", supply, &a.ClaimTokenTotalSupply},
		{"outcome_price", price, &a.Outcome.Price},
		{"bid_cap", bidCap, &a.BidCap},
		{"redeemable_eth_balance", redeemable, &a.RedeemableEthBalance},
		{"excess_contributions", excess, &a.ExcessContributions},
		{"eth_balance", balance, &a.EthBalance},
		{"deposited", deposited, &a.Deposited},
		{"total_redeemed", redeemed, &a.TotalRedeemed},
		{"emergency_withdrawn", emergencyWithdrawn, &a.EmergencyWithdrawn},
	} {
		v, err := parseWei(f.column, f.text)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	return &a, nil
}
