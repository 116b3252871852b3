// Package market adapts a pool to an external NFT auction market.
package market

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Target identifies the auctioned item. Zora and reserve auctions are
// addressed by AuctionID, coldie auctions by NFTContract and TokenID.
type Target struct {
	AuctionID   *uint256.Int
	NFTContract common.Address
	TokenID     *uint256.Int
}

// Key returns a stable string form of the target.
func (t Target) Key() string {
	id, token := "-", "-"
	if t.AuctionID != nil {
		id = t.AuctionID.Dec()
	}
	if t.TokenID != nil {
		token = t.TokenID.Dec()
	}
	return fmt.Sprintf("%s/%s/%s", id, t.NFTContract.Hex(), token)
}

// Transaction is a value-carrying call submitted to the market.
type Transaction struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *uint256.Int
}

// AuctionStatus is the market's view of an auction.
type AuctionStatus struct {
	Ended         bool
	HighestBidder common.Address
	HighestBid    *uint256.Int
}

// Market is the external auction collaborator.
type Market interface {
	// Submit executes tx. Any error means the call reverted and moved no funds.
	Submit(ctx context.Context, tx Transaction) error

	// Auction returns the current state of the auction for target.
	Auction(ctx context.Context, market common.Address, kind Kind, target Target) (*AuctionStatus, error)
}
