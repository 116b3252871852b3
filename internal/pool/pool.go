// Package pool implements the pooled-bid state machine: contribution
// intake, bidding through an auction gateway, outcome resolution,
// finalization, pro-rata redemption and admin emergency controls.
//
// Every mutating operation is atomic. It runs against a private copy of the
// pool state that replaces the live state only when the operation succeeds,
// so an error at any point, including a failed external call, leaves no
// trace. Events and storage projections are published after that swap.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"partybid/internal/claimtoken"
	"partybid/internal/domain"
	"partybid/internal/eventlog"
	"partybid/internal/idhash"
	"partybid/internal/ledger"
	"partybid/internal/observability"
)

// Gateway is the pool's view of the auction market.
// *market.Gateway satisfies it.
type Gateway interface {
	Bid(ctx context.Context, maxAmount *uint256.Int) error
	ObserveOutcome(ctx context.Context, maxAmount *uint256.Int) (domain.Outcome, error)
	Outbid(ctx context.Context) (bool, error)
	Call(ctx context.Context, target common.Address, data []byte, value *uint256.Int) error
}

// Payer moves native currency out of the pool.
type Payer interface {
	Send(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// Commit is what a successful operation changed.
type Commit struct {
	Account       domain.PoolAccount
	Contributions []domain.Contribution     // new or updated
	Redemptions   []domain.RedemptionRecord // new
	Events        []domain.Event
}

// Observer receives commits, e.g. to maintain storage projections.
// Errors are logged and counted; they never undo the operation.
type Observer interface {
	Apply(ctx context.Context, c Commit) error
}

// Config holds per-pool settings.
type Config struct {
	ID    string
	Admin common.Address

	// TokenScale is the number of claim-token units minted per wei. Defaults to 1.
	TokenScale *uint256.Int

	// AcceptLateContributions records contributions made while bidding as
	// excess, refundable 1:1 after finalization, instead of rejecting them.
	AcceptLateContributions bool

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pool is one crowdfunded bid. Safe for concurrent use.
type Pool struct {
	cfg     Config
	gateway Gateway
	payer   Payer
	log     *eventlog.Log
	logger  *zap.Logger
	metrics *observability.Metrics

	opMu sync.Mutex   // serializes operations
	stMu sync.RWMutex // guards st
	st   *state

	obsMu     sync.RWMutex
	observers []namedObserver
}

type namedObserver struct {
	name string
	obs  Observer
}

// New creates an Active pool. log, logger and metrics may be nil.
func New(cfg Config, gateway Gateway, payer Payer, log *eventlog.Log, logger *zap.Logger, metrics *observability.Metrics) (*Pool, error) {
	if cfg.ID == "" {
		return nil, errors.New("pool id is required")
	}
	if domain.IsZeroAddress(cfg.Admin) {
		return nil, errors.New("admin address is required")
	}
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if payer == nil {
		return nil, errors.New("payer is required")
	}
	if cfg.TokenScale == nil {
		cfg.TokenScale = uint256.NewInt(1)
	}
	if cfg.TokenScale.IsZero() {
		return nil, errors.New("token scale must be positive")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if log == nil {
		log = eventlog.New(cfg.ID, logger, metrics)
	}

	p := &Pool{
		cfg:     cfg,
		gateway: gateway,
		payer:   payer,
		log:     log,
		logger:  logger.With(zap.String("pool", cfg.ID)),
		metrics: metrics,
		st:      newState(cfg.ID),
	}
	p.updateGauges(p.st.account(cfg.ID, 0))
	return p, nil
}

// ID returns the pool id.
func (p *Pool) ID() string {
	return p.cfg.ID
}

// Admin returns the address allowed to use emergency controls.
func (p *Pool) Admin() common.Address {
	return p.cfg.Admin
}

// EventLog returns the pool's event log.
func (p *Pool) EventLog() *eventlog.Log {
	return p.log
}

// AddObserver registers an observer under name.
func (p *Pool) AddObserver(name string, o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, namedObserver{name: name, obs: o})
}

// op is the working context of one operation.
type op struct {
	p    *Pool
	ctx  context.Context
	name string
	s    *state
	now  int64

	events      []domain.Event
	contribs    []domain.Contribution
	redemptions []domain.RedemptionRecord
}

// callKey marks a context derived inside an external interaction of p.
type callKey struct{ p *Pool }

// acquire waits for the operation lock. A call made on a context handed out
// by external fails instead, since that operation already holds the lock.
func (p *Pool) acquire(ctx context.Context) error {
	if ctx.Value(callKey{p}) != nil {
		return domain.ErrReentrantCall
	}
	p.opMu.Lock()
	return nil
}

// run executes fn atomically.
func (p *Pool) run(ctx context.Context, name string, fn func(o *op) error) error {
	if err := p.acquire(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer p.opMu.Unlock()

	start := time.Now()
	p.stMu.RLock()
	work := p.st.clone()
	p.stMu.RUnlock()

	o := &op{p: p, ctx: ctx, name: name, s: work, now: p.cfg.Clock().UnixMilli()}
	if err := fn(o); err != nil {
		p.logger.Debug("operation rolled back", zap.String("op", name), zap.Error(err))
		if p.metrics != nil {
			p.metrics.OperationErrors.WithLabelValues(p.cfg.ID, name, errorLabel(err)).Inc()
		}
		return err
	}

	if len(o.events) == 0 && len(o.contribs) == 0 && len(o.redemptions) == 0 {
		return nil
	}

	p.stMu.Lock()
	p.st = work
	p.stMu.Unlock()

	p.publish(o)
	if p.metrics != nil {
		p.metrics.OperationLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return nil
}

// external runs an interaction with the outside world. Calls back into the
// pool made on the context passed to fn fail with ErrReentrantCall.
func (o *op) external(fn func(ctx context.Context) error) error {
	return fn(context.WithValue(o.ctx, callKey{o.p}, struct{}{}))
}

// emit queues an event for publication once the operation commits.
func (o *op) emit(kind domain.EventKind, actor common.Address, amount *uint256.Int, attrs map[string]string) {
	seq := o.p.log.NextSeq() + uint64(len(o.events))
	o.events = append(o.events, domain.Event{
		ID:        idhash.ComputeEventID(o.p.cfg.ID, seq, kind.String()),
		PoolID:    o.p.cfg.ID,
		Seq:       seq,
		Kind:      kind,
		Actor:     actor,
		Amount:    domain.CloneAmount(amount),
		State:     o.s.phase,
		Attrs:     attrs,
		Timestamp: o.now,
	})
}

func (p *Pool) publish(o *op) {
	// Event state reflects the pool after the whole operation.
	for i := range o.events {
		o.events[i].State = o.s.phase
	}
	account := o.s.account(p.cfg.ID, uint64(p.log.Len()+len(o.events)))
	account.UpdatedAt = o.now

	if err := p.log.Commit(o.ctx, o.events); err != nil {
		// Unreachable while opMu serializes operations.
		p.logger.Error("event log rejected commit", zap.String("op", o.name), zap.Error(err))
	}

	c := Commit{
		Account:       account,
		Contributions: o.contribs,
		Redemptions:   o.redemptions,
		Events:        o.events,
	}
	p.obsMu.RLock()
	observers := make([]namedObserver, len(p.observers))
	copy(observers, p.observers)
	p.obsMu.RUnlock()
	for _, ob := range observers {
		if err := ob.obs.Apply(o.ctx, c); err != nil {
			p.logger.Error("observer failed", zap.String("observer", ob.name), zap.String("op", o.name), zap.Error(err))
			if p.metrics != nil {
				p.metrics.SinkErrors.WithLabelValues(ob.name).Inc()
			}
		}
	}

	p.updateGauges(account)
	if p.metrics != nil {
		for _, e := range o.events {
			p.countEvent(e)
		}
	}
}

func (p *Pool) countEvent(e domain.Event) {
	m := p.metrics
	switch e.Kind {
	case domain.EventContribution:
		kind := "pooled"
		if e.Attrs["excess"] == "true" {
			kind = "excess"
		}
		m.Contributions.WithLabelValues(p.cfg.ID, kind).Inc()
	case domain.EventBidPlaced:
		m.Bids.WithLabelValues(p.cfg.ID, "placed").Inc()
	case domain.EventOutcomeObserved:
		m.OutcomesObserved.WithLabelValues(p.cfg.ID, e.Attrs["outcome"]).Inc()
	case domain.EventFinalized:
		m.Finalizations.WithLabelValues(p.cfg.ID).Inc()
	case domain.EventRedeemed:
		m.Redemptions.WithLabelValues(p.cfg.ID).Inc()
	case domain.EventEmergencyWithdraw, domain.EventEmergencyForceLost, domain.EventEmergencyCall:
		m.EmergencyActions.WithLabelValues(p.cfg.ID, e.Kind.String()).Inc()
	}
}

var allStates = []string{
	domain.StateActive.String(),
	domain.StateBidding.String(),
	domain.StateWon.String(),
	domain.StateLost.String(),
	domain.StateFinalized.String(),
}

func (p *Pool) updateGauges(a domain.PoolAccount) {
	m := p.metrics
	if m == nil {
		return
	}
	m.SetPoolState(p.cfg.ID, a.State.String(), allStates)
	m.TotalContributed.WithLabelValues(p.cfg.ID).Set(observability.WeiToEth(a.TotalContributed))
	m.RedeemableBalance.WithLabelValues(p.cfg.ID).Set(observability.WeiToEth(a.RedeemableEthBalance))
	m.EthBalance.WithLabelValues(p.cfg.ID).Set(observability.WeiToEth(a.EthBalance))
	m.ClaimTokenSupply.WithLabelValues(p.cfg.ID).Set(observability.WeiToEth(a.ClaimTokenTotalSupply))
}

func errorLabel(err error) string {
	for _, e := range []error{
		domain.ErrInvalidState,
		domain.ErrZeroAmount,
		domain.ErrInsufficientFunds,
		domain.ErrInsufficientTokenBalance,
		domain.ErrExternalCallFailed,
		domain.ErrArithmeticOverflow,
		domain.ErrAlreadyBid,
		domain.ErrNotFinalized,
		domain.ErrUnauthorized,
		domain.ErrReentrantCall,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "other"
}

// read runs fn against the committed state.
func (p *Pool) read(fn func(s *state)) {
	p.stMu.RLock()
	defer p.stMu.RUnlock()
	fn(p.st)
}

// Account returns a snapshot of the committed accounting state.
func (p *Pool) Account() domain.PoolAccount {
	var a domain.PoolAccount
	p.read(func(s *state) { a = s.account(p.cfg.ID, uint64(p.log.Len())) })
	return a
}

// State returns the current lifecycle state.
func (p *Pool) State() domain.PoolState {
	var st domain.PoolState
	p.read(func(s *state) { st = s.phase })
	return st
}

// Contributions returns every contribution in arrival order.
func (p *Pool) Contributions() []domain.Contribution {
	var out []domain.Contribution
	p.read(func(s *state) { out = s.ledger.Contributions() })
	return out
}

// Contributors returns pooled contributors in order of first contribution.
func (p *Pool) Contributors() []common.Address {
	var out []common.Address
	p.read(func(s *state) { out = s.ledger.Contributors() })
	return out
}

// ContributedBy returns the pooled amount contributed by addr.
func (p *Pool) ContributedBy(addr common.Address) *uint256.Int {
	var out *uint256.Int
	p.read(func(s *state) { out = s.ledger.ContributedBy(addr) })
	return out
}

// ExcessContributions returns the outstanding non-pooled balance.
func (p *Pool) ExcessContributions() *uint256.Int {
	var out *uint256.Int
	p.read(func(s *state) { out = s.ledger.ExcessContributions() })
	return out
}

// ExcessOf returns the excess still owed to addr.
func (p *Pool) ExcessOf(addr common.Address) *uint256.Int {
	var out *uint256.Int
	p.read(func(s *state) { out = s.ledger.ExcessOf(addr) })
	return out
}

// Redemptions returns the redemption audit trail.
func (p *Pool) Redemptions() []domain.RedemptionRecord {
	var out []domain.RedemptionRecord
	p.read(func(s *state) {
		out = make([]domain.RedemptionRecord, len(s.redemptions))
		for i, r := range s.redemptions {
			out[i] = r.Clone()
		}
	})
	return out
}

// Events returns the committed event log.
func (p *Pool) Events() []domain.Event {
	return p.log.Events()
}

// BalanceOf returns the claim-token balance of holder.
func (p *Pool) BalanceOf(holder common.Address) *uint256.Int {
	var out *uint256.Int
	p.read(func(s *state) { out = s.token.BalanceOf(holder) })
	return out
}

// TotalSupply returns the outstanding claim-token supply.
func (p *Pool) TotalSupply() *uint256.Int {
	var out *uint256.Int
	p.read(func(s *state) { out = s.token.TotalSupply() })
	return out
}

// Holders returns every non-zero claim-token balance.
func (p *Pool) Holders() map[common.Address]*uint256.Int {
	var out map[common.Address]*uint256.Int
	p.read(func(s *state) { out = s.token.Holders() })
	return out
}

// state is the complete mutable state of a pool.
type state struct {
	phase   domain.PoolState
	ledger  *ledger.Ledger
	token   *claimtoken.Token
	outcome domain.Outcome

	bidCap        *uint256.Int
	spent         *uint256.Int
	redeemable    *uint256.Int
	ethBalance    *uint256.Int
	deposited     *uint256.Int
	totalRedeemed *uint256.Int
	withdrawn     *uint256.Int

	redemptions []domain.RedemptionRecord
}

func newState(poolID string) *state {
	return &state{
		phase:         domain.StateActive,
		ledger:        ledger.New(poolID),
		token:         claimtoken.New(),
		outcome:       domain.Pending(),
		bidCap:        domain.Zero(),
		spent:         domain.Zero(),
		redeemable:    domain.Zero(),
		ethBalance:    domain.Zero(),
		deposited:     domain.Zero(),
		totalRedeemed: domain.Zero(),
		withdrawn:     domain.Zero(),
	}
}

func (s *state) clone() *state {
	out := &state{
		phase:         s.phase,
		ledger:        s.ledger.Clone(),
		token:         s.token.Clone(),
		outcome:       s.outcome.Clone(),
		bidCap:        domain.CloneAmount(s.bidCap),
		spent:         domain.CloneAmount(s.spent),
		redeemable:    domain.CloneAmount(s.redeemable),
		ethBalance:    domain.CloneAmount(s.ethBalance),
		deposited:     domain.CloneAmount(s.deposited),
		totalRedeemed: domain.CloneAmount(s.totalRedeemed),
		withdrawn:     domain.CloneAmount(s.withdrawn),
		redemptions:   make([]domain.RedemptionRecord, len(s.redemptions)),
	}
	for i, r := range s.redemptions {
		out.redemptions[i] = r.Clone()
	}
	return out
}

func (s *state) account(poolID string, events uint64) domain.PoolAccount {
	return domain.PoolAccount{
		PoolID:                poolID,
		State:                 s.phase,
		TotalContributed:      s.ledger.TotalContributed(),
		TotalSpentOnBid:       domain.CloneAmount(s.spent),
		ClaimTokenTotalSupply: s.token.TotalSupply(),
		Outcome:               s.outcome.Clone(),
		BidCap:                domain.CloneAmount(s.bidCap),
		RedeemableEthBalance:  domain.CloneAmount(s.redeemable),
		ExcessContributions:   s.ledger.ExcessContributions(),
		EthBalance:            domain.CloneAmount(s.ethBalance),
		Deposited:             domain.CloneAmount(s.deposited),
		TotalRedeemed:         domain.CloneAmount(s.totalRedeemed),
		EmergencyWithdrawn:    domain.CloneAmount(s.withdrawn),
		ContributionCount:     uint64(s.ledger.Len()),
		RedemptionCount:       uint64(len(s.redemptions)),
		EventCount:            events,
	}
}
