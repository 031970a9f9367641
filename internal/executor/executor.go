// Package executor turns gate-approved signals into broker orders.
//
// Every execution re-quotes first: risk decisions consume live prices,
// never the quote the signal was scored on. Dry-run mode records a
// synthetic execution and still counts against the daily trade budget,
// so the decision path is identical up to the final broker call.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/risk"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Broker is the slice of the broker client the executor needs.
type Broker interface {
	Quote(ctx context.Context, symbol string) (*types.Quote, error)
	QuoteOverseas(ctx context.Context, symbol string, exch types.Exchange) (*types.Quote, error)
	PlaceOrder(ctx context.Context, order types.Order) (*types.OrderReceipt, error)
	PlaceOrderOverseas(ctx context.Context, order types.Order) (*types.OrderReceipt, error)
}

// Env is the per-cycle context an execution runs in. The orchestrator
// derives it once per cycle from the balance snapshot, the sentiment
// multiplier, and the settings snapshot taken at cycle entry; the
// Limits field keeps gating pinned to that snapshot.
type Env struct {
	Equity      float64
	Exposure    float64
	Multiplier  float64
	NotionalCap float64
	DryRun      bool
	Exchange    types.Exchange // overseas symbols only
	Limits      config.RiskConfig
}

// Executor submits orders through the broker under the risk gate.
type Executor struct {
	broker Broker
	gate   *risk.Gate
	logger *slog.Logger
}

func New(broker Broker, gate *risk.Gate, logger *slog.Logger) *Executor {
	return &Executor{
		broker: broker,
		gate:   gate,
		logger: logger.With("component", "executor"),
	}
}

// ExecuteBuy re-quotes, sizes, and submits one buy candidate.
// A gate rejection returns (nil, nil): the candidate stays a signal.
// Broker failures return the error; the orchestrator records and
// continues.
func (e *Executor) ExecuteBuy(ctx context.Context, sig *types.TradeSignal, env Env) (*types.ExecutionRecord, error) {
	quote, err := e.quote(ctx, sig.Symbol, env.Exchange)
	if err != nil {
		return nil, fmt.Errorf("requote %s: %w", sig.Symbol, err)
	}

	decision := e.gate.CheckBuy(risk.BuyRequest{
		Signal:      sig,
		Price:       quote.Price,
		Equity:      env.Equity,
		Exposure:    env.Exposure,
		Multiplier:  env.Multiplier,
		NotionalCap: env.NotionalCap,
		Limits:      env.Limits,
	})
	if !decision.Approved {
		e.logger.Info("buy rejected",
			"symbol", sig.Symbol,
			"score", sig.TotalScore,
			"reason", decision.Reason,
		)
		return nil, nil
	}

	rec, err := e.submit(ctx, types.Order{
		Symbol:   sig.Symbol,
		Side:     types.Buy,
		Quantity: decision.Qty,
		Exchange: env.Exchange,
	}, quote, env.DryRun)
	if err != nil {
		return nil, err
	}
	e.gate.RecordTrade()
	return rec, nil
}

// ExecuteSell liquidates exactly the held quantity behind a sell signal.
// Sells are never gated on the trade budget or exposure limits.
func (e *Executor) ExecuteSell(ctx context.Context, sig *types.TradeSignal, heldQty int64, env Env) (*types.ExecutionRecord, error) {
	if heldQty <= 0 {
		return nil, nil
	}

	quote, err := e.quote(ctx, sig.Symbol, env.Exchange)
	if err != nil {
		return nil, fmt.Errorf("requote %s: %w", sig.Symbol, err)
	}

	rec, err := e.submit(ctx, types.Order{
		Symbol:   sig.Symbol,
		Side:     types.Sell,
		Quantity: heldQty,
		Exchange: env.Exchange,
	}, quote, env.DryRun)
	if err != nil {
		return nil, err
	}
	rec.Reason = sig.Reason
	return rec, nil
}

// submit places the order, or records it synthetically in dry-run.
// Overseas orders always carry the current quote as the limit price;
// domestic orders go out at market.
func (e *Executor) submit(ctx context.Context, order types.Order, quote *types.Quote, dryRun bool) (*types.ExecutionRecord, error) {
	rec := &types.ExecutionRecord{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    quote.Price,
		Notional: notional(order.Quantity, quote.Price),
		DryRun:   dryRun,
	}

	if dryRun {
		e.logger.Info("dry-run order",
			"symbol", order.Symbol,
			"side", order.Side,
			"qty", order.Quantity,
			"price", quote.Price,
		)
		return rec, nil
	}

	var receipt *types.OrderReceipt
	var err error
	if types.IsOverseas(order.Symbol) {
		order.Price = quote.Price
		receipt, err = e.broker.PlaceOrderOverseas(ctx, order)
	} else {
		receipt, err = e.broker.PlaceOrder(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	rec.OrderNo = receipt.OrderNo
	e.logger.Info("order placed",
		"symbol", order.Symbol,
		"side", order.Side,
		"qty", order.Quantity,
		"order_no", receipt.OrderNo,
	)
	return rec, nil
}

func (e *Executor) quote(ctx context.Context, symbol string, exch types.Exchange) (*types.Quote, error) {
	if types.IsOverseas(symbol) {
		return e.broker.QuoteOverseas(ctx, symbol, exch)
	}
	return e.broker.Quote(ctx, symbol)
}

// notional computes qty x price exactly, rounded to 2 decimals. Plain
// float multiplication drifts on large KRW quantities.
func notional(qty int64, price float64) float64 {
	n := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(price))
	return n.Round(2).InexactFloat64()
}
