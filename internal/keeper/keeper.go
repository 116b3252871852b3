// Package keeper drives pools through the parts of their lifecycle that
// depend only on the market: observing the outcome and finalizing.
package keeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"partybid/internal/domain"
	"partybid/internal/observability"
	"partybid/internal/pool"
)

// Poll results, used as the KeeperPolls label.
const (
	ResultPending   = "pending"
	ResultResolved  = "resolved"
	ResultFinalized = "finalized"
	ResultIdle      = "idle"
	ResultError     = "error"
)

// Options contains configuration for creating a Keeper.
type Options struct {
	Registry *pool.Registry
	Interval time.Duration // Default: 15s
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Keeper polls every registered pool. A Bidding pool has its outcome
// observed; a Won or Lost pool is finalized. Active and Finalized pools
// are left alone: bidding stays an explicit decision.
type Keeper struct {
	registry *pool.Registry
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// New creates a Keeper.
func New(opts Options) (*Keeper, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keeper{
		registry: opts.Registry,
		interval: interval,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      time.Now,
	}, nil
}

// Run polls immediately and then every interval until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.Info("keeper started", zap.Duration("interval", k.interval))

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		k.PollAll(ctx)

		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollAll polls every pool once. It returns the number of pools that failed.
func (k *Keeper) PollAll(ctx context.Context) int {
	failed := 0
	for _, p := range k.registry.All() {
		if ctx.Err() != nil {
			return failed
		}
		if _, err := k.Poll(ctx, p); err != nil {
			failed++
		}
	}
	if failed == 0 && k.metrics != nil {
		k.metrics.LastSuccessfulPoll.Set(float64(k.now().Unix()))
	}
	return failed
}

// Poll advances one pool by at most one step and reports what happened.
func (k *Keeper) Poll(ctx context.Context, p *pool.Pool) (string, error) {
	result, err := k.poll(ctx, p)
	if err != nil {
		result = ResultError
		k.logger.Warn("keeper poll failed", zap.String("pool", p.ID()), zap.Error(err))
	}
	if k.metrics != nil {
		k.metrics.KeeperPolls.WithLabelValues(result).Inc()
	}
	return result, err
}

func (k *Keeper) poll(ctx context.Context, p *pool.Pool) (string, error) {
	switch p.State() {
	case domain.StateBidding:
		out, err := p.ObserveOutcome(ctx)
		if err != nil {
			return "", err
		}
		if !out.Resolved() {
			return ResultPending, nil
		}
		k.logger.Info("auction resolved", zap.String("pool", p.ID()), zap.Stringer("outcome", out))
		return ResultResolved, nil

	case domain.StateWon, domain.StateLost:
		account, err := p.Finalize(ctx)
		if err != nil {
			return "", err
		}
		k.logger.Info("pool finalized by keeper",
			zap.String("pool", p.ID()),
			zap.String("redeemable_wei", account.RedeemableEthBalance.Dec()),
		)
		return ResultFinalized, nil

	default:
		return ResultIdle, nil
	}
}
