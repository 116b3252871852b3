package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"partybid/internal/domain"
)

// Emergency controls bypass the lifecycle guards to recover from a stuck or
// misbehaving market. They are admin-only and every invocation is logged at
// warn level, whether or not it succeeds.

func (p *Pool) authorize(action string, caller common.Address) error {
	p.logger.Warn("emergency control invoked",
		zap.String("action", action),
		zap.String("caller", caller.Hex()))
	if caller != p.cfg.Admin {
		return fmt.Errorf("%s by %s: %w", action, caller.Hex(), domain.ErrUnauthorized)
	}
	return nil
}

// EmergencyWithdrawEth sends amount of the pool's currency to the admin.
// No accounting other than the balance changes.
func (p *Pool) EmergencyWithdrawEth(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	err := p.run(ctx, "emergency_withdraw", func(o *op) error {
		if err := p.authorize("emergency_withdraw", caller); err != nil {
			return err
		}
		if amount == nil || amount.IsZero() {
			return domain.ErrZeroAmount
		}
		if o.s.ethBalance.Lt(amount) {
			return fmt.Errorf("%w: withdraw %s exceeds balance %s", domain.ErrInsufficientFunds, amount.Dec(), o.s.ethBalance.Dec())
		}
		withdrawn, err := domain.CheckedAdd(o.s.withdrawn, amount)
		if err != nil {
			return err
		}
		o.s.ethBalance = new(uint256.Int).Sub(o.s.ethBalance, amount)
		o.s.withdrawn = withdrawn
		o.emit(domain.EventEmergencyWithdraw, caller, amount, nil)
		return o.pay(p.cfg.Admin, amount)
	})
	p.logEmergencyResult("emergency_withdraw", err, zap.String("amount", domain.CloneAmount(amount).Dec()))
	return err
}

// EmergencyForceLost marks the auction lost regardless of the market.
// Finalizing afterwards assumes any escrowed bid has been returned.
func (p *Pool) EmergencyForceLost(ctx context.Context, caller common.Address) error {
	err := p.run(ctx, "emergency_force_lost", func(o *op) error {
		if err := p.authorize("emergency_force_lost", caller); err != nil {
			return err
		}
		if o.s.phase != domain.StateActive && o.s.phase != domain.StateBidding {
			return fmt.Errorf("force lost in %s: %w", o.s.phase, domain.ErrInvalidState)
		}
		prev := o.s.phase
		o.s.phase = domain.StateLost
		o.s.outcome = domain.Lost()
		o.emit(domain.EventEmergencyForceLost, caller, domain.Zero(), map[string]string{
			"previous_state": prev.String(),
		})
		return nil
	})
	p.logEmergencyResult("emergency_force_lost", err)
	return err
}

// EmergencyCall forwards arbitrary calldata to target from the pool.
func (p *Pool) EmergencyCall(ctx context.Context, caller common.Address, target common.Address, data []byte) error {
	err := p.run(ctx, "emergency_call", func(o *op) error {
		if err := p.authorize("emergency_call", caller); err != nil {
			return err
		}
		o.emit(domain.EventEmergencyCall, caller, domain.Zero(), map[string]string{
			"target": target.Hex(),
			"data":   hexutil.Encode(data),
		})
		return o.external(func(ctx context.Context) error {
			return p.gateway.Call(ctx, target, data, domain.Zero())
		})
	})
	p.logEmergencyResult("emergency_call", err, zap.String("target", target.Hex()))
	return err
}

func (p *Pool) logEmergencyResult(action string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("action", action))
	if err != nil {
		p.logger.Warn("emergency control failed", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Warn("emergency control applied", fields...)
}
