// Package stub provides an in-memory auction market for tests and demos.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/market"
)

// ErrNotFound is returned when an auction does not exist.
var ErrNotFound = errors.New("auction not found")

// Auction is the stub's record of one auction.
type Auction struct {
	Kind          market.Kind
	Market        common.Address
	Target        market.Target
	Reserve       *uint256.Int
	Ended         bool
	HighestBidder common.Address
	HighestBid    *uint256.Int
}

// Market implements market.Market in memory. Bids are decoded from their
// calldata, so the stub exercises the same encoding as a real market.
type Market struct {
	mu        sync.Mutex
	auctions  map[string]*Auction
	kinds     map[common.Address]market.Kind
	submitted []market.Transaction
	failNext  error
	nextID    uint64

	// OnSubmit, when set, runs before each submission is processed.
	// A non-nil return rejects the submission.
	OnSubmit func(ctx context.Context, tx market.Transaction) error

	// AuctionErr, when set, fails every auction query.
	AuctionErr error
}

var _ market.Market = (*Market)(nil)

// New creates an empty stub market.
func New() *Market {
	return &Market{
		auctions: make(map[string]*Auction),
		kinds:    make(map[common.Address]market.Kind),
	}
}

func normalize(kind market.Kind, t market.Target) market.Target {
	if kind == market.KindColdie {
		return market.Target{NFTContract: t.NFTContract, TokenID: t.TokenID}
	}
	return market.Target{AuctionID: t.AuctionID}
}

func key(addr common.Address, kind market.Kind, t market.Target) string {
	return addr.Hex() + "|" + normalize(kind, t).Key()
}

// Open registers an auction with the given reserve price.
func (m *Market) Open(addr common.Address, kind market.Kind, target market.Target, reserve *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open(addr, kind, target, reserve)
}

func (m *Market) open(addr common.Address, kind market.Kind, target market.Target, reserve *uint256.Int) *Auction {
	a := &Auction{
		Kind:       kind,
		Market:     addr,
		Target:     normalize(kind, target),
		Reserve:    cloneOrZero(reserve),
		HighestBid: new(uint256.Int),
	}
	m.auctions[key(addr, kind, target)] = a
	m.kinds[addr] = kind
	return a
}

// PlaceRivalBid records a bid from a third party.
func (m *Market) PlaceRivalBid(addr common.Address, target market.Target, bidder common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.lookup(addr, target)
	if err != nil {
		return err
	}
	return a.bid(bidder, amount)
}

// End closes the auction; the current highest bidder wins.
func (m *Market) End(addr common.Address, target market.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.lookup(addr, target)
	if err != nil {
		return err
	}
	a.Ended = true
	return nil
}

// Get returns a copy of the auction.
func (m *Market) Get(addr common.Address, target market.Target) (Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.lookup(addr, target)
	if err != nil {
		return Auction{}, err
	}
	out := *a
	out.Reserve = cloneOrZero(a.Reserve)
	out.HighestBid = cloneOrZero(a.HighestBid)
	return out, nil
}

// FailNextSubmit makes the next submission fail with err.
func (m *Market) FailNextSubmit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Submitted returns every accepted transaction.
func (m *Market) Submitted() []market.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]market.Transaction, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// Submit implements market.Market.
func (m *Market) Submit(ctx context.Context, tx market.Transaction) error {
	if m.OnSubmit != nil {
		if err := m.OnSubmit(ctx, tx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}

	kind, isMarket := m.kinds[tx.To]
	if !isMarket {
		// Plain call to some other contract.
		m.submitted = append(m.submitted, tx)
		return nil
	}

	method, args, err := market.Decode(kind, tx.Data)
	if err != nil {
		return err
	}
	if err := m.apply(tx, kind, method, args); err != nil {
		return err
	}
	m.submitted = append(m.submitted, tx)
	return nil
}

func (m *Market) apply(tx market.Transaction, kind market.Kind, method string, args []interface{}) error {
	value := cloneOrZero(tx.Value)

	switch method {
	case "createBid":
		amount := toUint(args[1])
		if !amount.Eq(value) {
			return fmt.Errorf("createBid: amount %s does not match value %s", amount.Dec(), value.Dec())
		}
		return m.bidOn(tx.To, market.Target{AuctionID: toUint(args[0])}, tx.From, value)
	case "placeBid":
		return m.bidOn(tx.To, market.Target{AuctionID: toUint(args[0])}, tx.From, value)
	case "bid":
		return m.bidOn(tx.To, market.Target{NFTContract: args[0].(common.Address), TokenID: toUint(args[1])}, tx.From, value)
	case "createAuction":
		m.nextID++
		m.open(tx.To, kind, market.Target{AuctionID: uint256.NewInt(m.nextID)}, toUint(args[3]))
		return nil
	case "createReserveAuction":
		m.nextID++
		m.open(tx.To, kind, market.Target{AuctionID: uint256.NewInt(m.nextID)}, toUint(args[2]))
		return nil
	case "createColdieAuction":
		m.open(tx.To, kind, market.Target{NFTContract: args[0].(common.Address), TokenID: toUint(args[1])}, toUint(args[2]))
		return nil
	}
	return fmt.Errorf("unsupported method %s", method)
}

func (m *Market) bidOn(addr common.Address, target market.Target, bidder common.Address, amount *uint256.Int) error {
	a, err := m.lookup(addr, target)
	if err != nil {
		return err
	}
	return a.bid(bidder, amount)
}

func (a *Auction) bid(bidder common.Address, amount *uint256.Int) error {
	if a.Ended {
		return errors.New("auction has ended")
	}
	if amount.Lt(a.Reserve) {
		return fmt.Errorf("bid %s below reserve %s", amount.Dec(), a.Reserve.Dec())
	}
	if !amount.Gt(a.HighestBid) {
		return fmt.Errorf("bid %s does not beat %s", amount.Dec(), a.HighestBid.Dec())
	}
	a.HighestBidder = bidder
	a.HighestBid = cloneOrZero(amount)
	return nil
}

// Auction implements market.Market.
func (m *Market) Auction(_ context.Context, addr common.Address, kind market.Kind, target market.Target) (*market.AuctionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AuctionErr != nil {
		return nil, m.AuctionErr
	}
	a, ok := m.auctions[key(addr, kind, target)]
	if !ok {
		return nil, ErrNotFound
	}
	return &market.AuctionStatus{
		Ended:         a.Ended,
		HighestBidder: a.HighestBidder,
		HighestBid:    cloneOrZero(a.HighestBid),
	}, nil
}

func (m *Market) lookup(addr common.Address, target market.Target) (*Auction, error) {
	kind, ok := m.kinds[addr]
	if !ok {
		return nil, ErrNotFound
	}
	a, ok := m.auctions[key(addr, kind, target)]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func toUint(v interface{}) *uint256.Int {
	b, _ := v.(*big.Int)
	if b == nil {
		return new(uint256.Int)
	}
	return uint256.MustFromBig(b)
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
