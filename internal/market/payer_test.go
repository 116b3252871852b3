package market_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partybid/internal/domain"
	"partybid/internal/market"
	"partybid/internal/market/stub"
)

func TestPayer_Send(t *testing.T) {
	m := stub.New()
	from := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	to := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	p := market.NewPayer(m, from)

	require.NoError(t, p.Send(context.Background(), to, domain.Ether(2)))

	sent := m.Submitted()
	require.Len(t, sent, 1)
	assert.Equal(t, from, sent[0].From)
	assert.Equal(t, to, sent[0].To)
	assert.Empty(t, sent[0].Data)
	assert.True(t, sent[0].Value.Eq(domain.Ether(2)))
}

func TestPayer_Failures(t *testing.T) {
	m := stub.New()
	p := market.NewPayer(m, common.HexToAddress("0xbb"))

	err := p.Send(context.Background(), common.Address{}, domain.Ether(1))
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed)

	m.FailNextSubmit(errors.New("reverted"))
	err = p.Send(context.Background(), common.HexToAddress("0xa1"), domain.Ether(1))
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed)
	assert.Empty(t, m.Submitted())
}
