package engine

import (
	"context"
	"fmt"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/executor"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Exit thresholds are hard policy, deliberately outside RiskLimits.
const (
	takeProfitPct = 10.0
	stopLossPct   = -5.0
)

// sweepHoldings inspects every held position for an exit: take-profit,
// stop-loss, or a reversal of the composite signal. Resulting sells run
// through the gate's sell threshold and the executor.
func (a *AutoTrader) sweepHoldings(ctx context.Context, settings Settings, hybrid *types.HybridSentiment, balance *types.Balance, result *types.CycleResult) {
	for _, pos := range balance.Positions {
		sig := a.exitSignal(ctx, pos, settings, hybrid)
		if sig == nil {
			continue
		}
		result.SellSignals = append(result.SellSignals, *sig)

		if d := a.gate.CheckSell(sig, settings.Risk); !d.Approved {
			a.logger.Info("sell rejected", "symbol", sig.Symbol, "reason", d.Reason)
			continue
		}

		// The balance snapshot names the venue a position actually sits
		// on; the fundamentals table only covers the scan universe.
		exch := pos.Exchange
		if exch == "" {
			exch = a.exchangeFor(sig.Symbol)
		}
		rec, err := a.exec.ExecuteSell(ctx, sig, pos.Quantity, executor.Env{
			Equity:      balance.Summary.TotalEval,
			NotionalCap: settings.NotionalCap,
			DryRun:      settings.DryRun,
			Exchange:    exch,
			Limits:      settings.Risk,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: sell: %v", sig.Symbol, err))
			continue
		}
		if rec != nil {
			result.ExecutedSells = append(result.ExecutedSells, *rec)
		}
	}
}

// exitSignal decides whether one position should be closed. Take-profit
// and stop-loss fire on PnL alone; otherwise the composite signal is
// recomputed against the cycle's sentiment snapshot and only a Sell or
// StrongSell verdict surfaces.
func (a *AutoTrader) exitSignal(ctx context.Context, pos types.Position, settings Settings, hybrid *types.HybridSentiment) *types.TradeSignal {
	switch {
	case pos.PnLPct >= takeProfitPct:
		return &types.TradeSignal{
			Symbol:       pos.Symbol,
			Name:         pos.Name,
			Type:         types.SignalSell,
			TotalScore:   -40,
			SuggestedQty: pos.Quantity,
			Reason:       fmt.Sprintf("take-profit: +%.1f%% on %d shares", pos.PnLPct, pos.Quantity),
			Action:       fmt.Sprintf("sell held %d shares", pos.Quantity),
		}

	case pos.PnLPct <= stopLossPct:
		return &types.TradeSignal{
			Symbol:       pos.Symbol,
			Name:         pos.Name,
			Type:         types.StrongSell,
			TotalScore:   -80,
			SuggestedQty: pos.Quantity,
			Reason:       fmt.Sprintf("stop-loss: %.1f%% on %d shares", pos.PnLPct, pos.Quantity),
			Action:       fmt.Sprintf("sell held %d shares", pos.Quantity),
		}
	}

	sig, err := a.evaluateSymbol(ctx, pos.Symbol, settings, hybrid, pos.Quantity)
	if err != nil {
		// Holdings outside the fundamentals table simply stay held.
		a.logger.Debug("holding not re-evaluated", "symbol", pos.Symbol, "error", err)
		return nil
	}
	if sig.Type != types.SignalSell && sig.Type != types.StrongSell {
		return nil
	}
	sig.Reason = fmt.Sprintf("signal reversal: %s", sig.Reason)
	return sig
}
