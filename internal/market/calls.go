package market

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind identifies which auction house the pool bids in.
type Kind string

const (
	KindZora    Kind = "zora"    // Zora AuctionHouse
	KindReserve Kind = "reserve" // Foundation-style reserve auction
	KindColdie  Kind = "coldie"  // SuperRare coldie auction
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known market.
func (k Kind) IsValid() bool {
	switch k {
	case KindZora, KindReserve, KindColdie:
		return true
	}
	return false
}

const zoraABI = `[
 {"type":"function","name":"createBid","stateMutability":"payable","inputs":[{"name":"auctionId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"createAuction","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"tokenContract","type":"address"},{"name":"duration","type":"uint256"},{"name":"reservePrice","type":"uint256"},{"name":"curator","type":"address"},{"name":"curatorFeePercentage","type":"uint8"},{"name":"auctionCurrency","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"endAuction","stateMutability":"nonpayable","inputs":[{"name":"auctionId","type":"uint256"}],"outputs":[]}
]`

const reserveABI = `[
 {"type":"function","name":"placeBid","stateMutability":"payable","inputs":[{"name":"auctionId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"createReserveAuction","stateMutability":"nonpayable","inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"reservePrice","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"finalizeReserveAuction","stateMutability":"nonpayable","inputs":[{"name":"auctionId","type":"uint256"}],"outputs":[]}
]`

const coldieABI = `[
 {"type":"function","name":"bid","stateMutability":"payable","inputs":[{"name":"_contractAddress","type":"address"},{"name":"_tokenId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"createColdieAuction","stateMutability":"nonpayable","inputs":[{"name":"_contractAddress","type":"address"},{"name":"_tokenId","type":"uint256"},{"name":"_reservePrice","type":"uint256"},{"name":"_lengthOfAuction","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"settleAuction","stateMutability":"nonpayable","inputs":[{"name":"_contractAddress","type":"address"},{"name":"_tokenId","type":"uint256"}],"outputs":[]}
]`

var (
	abiOnce   sync.Once
	abiByKind map[Kind]abi.ABI
	abiErr    error
)

// ABI returns the parsed interface of the given market.
func ABI(kind Kind) (abi.ABI, error) {
	abiOnce.Do(func() {
		abiByKind = make(map[Kind]abi.ABI, 3)
		for k, def := range map[Kind]string{KindZora: zoraABI, KindReserve: reserveABI, KindColdie: coldieABI} {
			parsed, err := abi.JSON(strings.NewReader(def))
			if err != nil {
				abiErr = fmt.Errorf("parse %s abi: %w", k, err)
				return
			}
			abiByKind[k] = parsed
		}
	})
	if abiErr != nil {
		return abi.ABI{}, abiErr
	}
	parsed, ok := abiByKind[kind]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unknown market kind %q", kind)
	}
	return parsed, nil
}

// Call is a statically typed market entry point.
type Call interface {
	Kind() Kind
	Method() string
	Args() []interface{}
}

// Encode ABI-encodes c into transaction calldata.
func Encode(c Call) ([]byte, error) {
	parsed, err := ABI(c.Kind())
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(c.Method(), c.Args()...)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s: %w", c.Kind(), c.Method(), err)
	}
	return data, nil
}

// Decode resolves calldata back into a method name and its arguments.
func Decode(kind Kind, data []byte) (string, []interface{}, error) {
	parsed, err := ABI(kind)
	if err != nil {
		return "", nil, err
	}
	if len(data) < 4 {
		return "", nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", method.Name, err)
	}
	return method.Name, args, nil
}

func big256(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// ZoraCreateBid bids amount on a Zora auction. The transaction value must equal amount.
type ZoraCreateBid struct {
	AuctionID *uint256.Int
	Amount    *uint256.Int
}

func (ZoraCreateBid) Kind() Kind { return KindZora }
func (ZoraCreateBid) Method() string { return "createBid" }
func (c ZoraCreateBid) Args() []interface{} {
	return []interface{}{big256(c.AuctionID), big256(c.Amount)}
}

// ZoraCreateAuction lists a token on the Zora auction house.
type ZoraCreateAuction struct {
	TokenID              *uint256.Int
	TokenContract        common.Address
	Duration             *uint256.Int // seconds
	ReservePrice         *uint256.Int
	Curator              common.Address
	CuratorFeePercentage uint8
	AuctionCurrency      common.Address // zero for native currency
}

func (ZoraCreateAuction) Kind() Kind { return KindZora }
func (ZoraCreateAuction) Method() string { return "createAuction" }
func (c ZoraCreateAuction) Args() []interface{} {
	return []interface{}{
		big256(c.TokenID), c.TokenContract, big256(c.Duration), big256(c.ReservePrice),
		c.Curator, c.CuratorFeePercentage, c.AuctionCurrency,
	}
}

// ReserveAuctionPlaceBid bids the transaction value on a reserve auction.
type ReserveAuctionPlaceBid struct {
	AuctionID *uint256.Int
}

func (ReserveAuctionPlaceBid) Kind() Kind { return KindReserve }
func (ReserveAuctionPlaceBid) Method() string { return "placeBid" }
func (c ReserveAuctionPlaceBid) Args() []interface{} {
	return []interface{}{big256(c.AuctionID)}
}

// ReserveAuctionCreate lists a token on the reserve auction market.
type ReserveAuctionCreate struct {
	NFTContract  common.Address
	TokenID      *uint256.Int
	ReservePrice *uint256.Int
}

func (ReserveAuctionCreate) Kind() Kind { return KindReserve }
func (ReserveAuctionCreate) Method() string { return "createReserveAuction" }
func (c ReserveAuctionCreate) Args() []interface{} {
	return []interface{}{c.NFTContract, big256(c.TokenID), big256(c.ReservePrice)}
}

// ColdieBid bids the transaction value on a coldie auction.
type ColdieBid struct {
	NFTContract common.Address
	TokenID     *uint256.Int
}

func (ColdieBid) Kind() Kind { return KindColdie }
func (ColdieBid) Method() string { return "bid" }
func (c ColdieBid) Args() []interface{} {
	return []interface{}{c.NFTContract, big256(c.TokenID)}
}

// ColdieCreateAuction lists a token on the coldie auction market.
type ColdieCreateAuction struct {
	NFTContract  common.Address
	TokenID      *uint256.Int
	ReservePrice *uint256.Int
	Length       *uint256.Int // blocks
}

func (ColdieCreateAuction) Kind() Kind { return KindColdie }
func (ColdieCreateAuction) Method() string { return "createColdieAuction" }
func (c ColdieCreateAuction) Args() []interface{} {
	return []interface{}{c.NFTContract, big256(c.TokenID), big256(c.ReservePrice), big256(c.Length)}
}
