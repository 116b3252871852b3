package market

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestEncode_Selectors(t *testing.T) {
	nft := common.HexToAddress("0x00000000000000000000000000000000000000f1")

	tests := []struct {
		name    string
		call    Call
		sig     string
		argsLen int
	}{
		{"zora bid", ZoraCreateBid{AuctionID: uint256.NewInt(7), Amount: uint256.NewInt(100)}, "createBid(uint256,uint256)", 64},
		{"reserve bid", ReserveAuctionPlaceBid{AuctionID: uint256.NewInt(7)}, "placeBid(uint256)", 32},
		{"coldie bid", ColdieBid{NFTContract: nft, TokenID: uint256.NewInt(1)}, "bid(address,uint256)", 64},
		{"reserve create", ReserveAuctionCreate{NFTContract: nft, TokenID: uint256.NewInt(1), ReservePrice: uint256.NewInt(5)}, "createReserveAuction(address,uint256,uint256)", 96},
		{"zora create", ZoraCreateAuction{TokenID: uint256.NewInt(1), TokenContract: nft, Duration: uint256.NewInt(172800), ReservePrice: uint256.NewInt(5)}, "createAuction(uint256,address,uint256,uint256,address,uint8,address)", 224},
		{"coldie create", ColdieCreateAuction{NFTContract: nft, TokenID: uint256.NewInt(1), ReservePrice: uint256.NewInt(5), Length: uint256.NewInt(6500)}, "createColdieAuction(address,uint256,uint256,uint256)", 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.call)
			require.NoError(t, err)
			require.Len(t, data, 4+tt.argsLen)
			assert.Equal(t, selector(tt.sig), data[:4])
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	data, err := Encode(ZoraCreateBid{AuctionID: uint256.NewInt(7), Amount: uint256.NewInt(100)})
	require.NoError(t, err)

	method, args, err := Decode(KindZora, data)
	require.NoError(t, err)
	assert.Equal(t, "createBid", method)
	require.Len(t, args, 2)
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := Decode(KindZora, []byte{0x01})
	assert.Error(t, err)

	_, _, err = Decode(KindZora, []byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)

	_, _, err = Decode(Kind("unknown"), make([]byte, 36))
	assert.Error(t, err)
}

func TestGatewayConfig_Validate(t *testing.T) {
	mkt := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	self := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	nft := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	tests := []struct {
		name    string
		cfg     GatewayConfig
		wantErr bool
	}{
		{"zora ok", GatewayConfig{Kind: KindZora, Market: mkt, Self: self, Target: Target{AuctionID: uint256.NewInt(1)}}, false},
		{"zora missing auction", GatewayConfig{Kind: KindZora, Market: mkt, Self: self}, true},
		{"coldie ok", GatewayConfig{Kind: KindColdie, Market: mkt, Self: self, Target: Target{NFTContract: nft, TokenID: uint256.NewInt(1)}}, false},
		{"coldie missing token", GatewayConfig{Kind: KindColdie, Market: mkt, Self: self, Target: Target{NFTContract: nft}}, true},
		{"unknown kind", GatewayConfig{Kind: "x", Market: mkt, Self: self}, true},
		{"missing market", GatewayConfig{Kind: KindReserve, Self: self, Target: Target{AuctionID: uint256.NewInt(1)}}, true},
		{"missing self", GatewayConfig{Kind: KindReserve, Market: mkt, Target: Target{AuctionID: uint256.NewInt(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
