package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.Contributions.WithLabelValues("p1", "pooled").Inc()
	m.Contributions.WithLabelValues("p1", "pooled").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Contributions.WithLabelValues("p1", "pooled")))

	// A second instance on its own registry must not collide.
	require.NotPanics(t, func() { NewMetrics("test", prometheus.NewRegistry()) })
}

func TestMetrics_SetPoolState(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	all := []string{"ACTIVE", "BIDDING", "FINALIZED"}

	m.SetPoolState("p1", "BIDDING", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PoolState.WithLabelValues("p1", "ACTIVE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolState.WithLabelValues("p1", "BIDDING")))

	m.SetPoolState("p1", "FINALIZED", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PoolState.WithLabelValues("p1", "BIDDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolState.WithLabelValues("p1", "FINALIZED")))
}

func TestMetrics_RecordDBQuery(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordDBQuery("postgres", "insert", 0.01, nil)
	m.RecordDBQuery("postgres", "insert", 0.02, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.FeedClients.Set(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_events_feed_clients 3"))
}

func TestWeiToEth(t *testing.T) {
	oneAndHalf := new(uint256.Int).Mul(uint256.NewInt(15), uint256.NewInt(100_000_000_000_000_000))
	assert.InDelta(t, 1.5, WeiToEth(oneAndHalf), 1e-12)
	assert.Equal(t, 0.0, WeiToEth(nil))
}
