package market

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/domain"
)

// Payer sends native currency out of the pool through the same relay
// that carries market calls: a Transaction with no calldata.
type Payer struct {
	market Market
	from   common.Address
}

// NewPayer creates a Payer sending from the pool address from.
func NewPayer(m Market, from common.Address) *Payer {
	return &Payer{market: m, from: from}
}

// Send transfers amount to to. Failures wrap domain.ErrExternalCallFailed.
func (p *Payer) Send(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if domain.IsZeroAddress(to) {
		return fmt.Errorf("%w: transfer to zero address", domain.ErrExternalCallFailed)
	}
	tx := Transaction{From: p.from, To: to, Value: domain.CloneAmount(amount)}
	if err := p.market.Submit(ctx, tx); err != nil {
		return fmt.Errorf("%w: transfer %s wei to %s: %v", domain.ErrExternalCallFailed, tx.Value.Dec(), to.Hex(), err)
	}
	return nil
}
