package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/broker"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/engine"
	"github.com/lunara-kim/market-auto-trader-sub000/internal/scheduler"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Trader is the engine surface the handlers drive.
type Trader interface {
	RunCycle(ctx context.Context) (*types.CycleResult, error)
	ScanOnly(ctx context.Context) ([]types.TradeSignal, error)
	Settings() engine.Settings
	UpdateSettings(engine.Settings)
}

// SchedulerControl is the scheduler surface the handlers drive.
type SchedulerControl interface {
	Start(interval time.Duration, krOnly, usEnabled bool) error
	Stop()
	Running() bool
	GetStatus() scheduler.Status
	History(limit int) []types.CycleResult
}

// SettingsStore persists operator state; may be nil (persistence off).
type SettingsStore interface {
	SaveSettings(engine.Settings) error
	SaveHistory([]types.CycleResult) error
}

// Handlers holds the control-surface dependencies.
type Handlers struct {
	trader Trader
	sched  SchedulerControl
	store  SettingsStore
	hub    *Hub
	logger *slog.Logger
}

func NewHandlers(trader Trader, sched SchedulerControl, store SettingsStore, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		trader: trader,
		sched:  sched,
		store:  store,
		hub:    hub,
		logger: logger.With("component", "api"),
	}
}

// errorBody is the uniform error envelope: {error: {code, message, detail?}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, detail string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Detail: detail}})
}

// writeFailure maps the broker error taxonomy onto HTTP statuses.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	var verr *broker.ValidationError
	var aerr *broker.AuthError
	var berr *broker.BrokerError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "validation", verr.Msg, "")
	case errors.As(err, &aerr):
		writeError(w, http.StatusUnauthorized, "auth", aerr.Msg, "")
	case errors.As(err, &berr):
		writeError(w, http.StatusBadGateway, "broker", berr.Msg, fmt.Sprintf("status %d code %s", berr.Status, berr.Code))
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), "")
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleScan runs the universe scan only: no orders, no holdings sweep.
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	signals, err := h.trader.ScanOnly(r.Context())
	if err != nil {
		h.logger.Error("scan failed", "error", err)
		h.writeFailure(w, err)
		return
	}
	if signals == nil {
		signals = []types.TradeSignal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"count":   len(signals),
	})
}

// HandleRun runs one cycle synchronously and returns its result.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.trader.RunCycle(r.Context())
	if err != nil {
		h.logger.Error("cycle failed", "error", err)
		h.writeFailure(w, err)
		return
	}
	h.hub.Broadcast(NewCycleEvent(*result))
	writeJSON(w, http.StatusOK, result)
}

// HandleGetConfig returns the current trading settings.
func (h *Handlers) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.trader.Settings())
}

// HandlePutConfig replaces the trading settings; effective next cycle.
func (h *Handlers) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	var settings engine.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "malformed settings body", err.Error())
		return
	}
	if err := validateSettings(settings); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error(), "")
		return
	}

	h.trader.UpdateSettings(settings)
	if h.store != nil {
		if err := h.store.SaveSettings(settings); err != nil {
			h.logger.Warn("settings not persisted", "error", err)
		}
	}
	h.hub.Broadcast(NewConfigEvent(settings))
	writeJSON(w, http.StatusOK, settings)
}

func validateSettings(s engine.Settings) error {
	if s.Universe == "" {
		return fmt.Errorf("universe is required")
	}
	if s.NotionalCap <= 0 {
		return fmt.Errorf("notional_cap must be > 0")
	}
	if s.Risk.MaxDailyTrades <= 0 {
		return fmt.Errorf("risk_limits.max_daily_trades must be > 0")
	}
	if s.Risk.MaxPositionFraction <= 0 || s.Risk.MaxPositionFraction > 1 {
		return fmt.Errorf("risk_limits.max_position_fraction must be in (0, 1]")
	}
	if s.Risk.MaxTotalPositionFraction <= 0 || s.Risk.MaxTotalPositionFraction > 1 {
		return fmt.Errorf("risk_limits.max_total_position_fraction must be in (0, 1]")
	}
	return nil
}

// startRequest is the POST /scheduler/start body.
type startRequest struct {
	IntervalMinutes int  `json:"interval_minutes"`
	KROnly          bool `json:"kr_only"`
	USEnabled       bool `json:"us_enabled"`
}

// HandleSchedulerStart begins periodic cycles.
func (h *Handlers) HandleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "malformed start body", err.Error())
		return
	}

	interval := time.Duration(req.IntervalMinutes) * time.Minute
	if err := h.sched.Start(interval, req.KROnly, req.USEnabled); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error(), "")
		return
	}

	h.hub.Broadcast(NewSchedulerEvent(true, interval.String(), req.KROnly, req.USEnabled))
	writeJSON(w, http.StatusOK, h.sched.GetStatus())
}

// HandleSchedulerStop cancels the periodic trigger and snapshots the
// history ring.
func (h *Handlers) HandleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	if h.store != nil {
		if err := h.store.SaveHistory(h.sched.History(0)); err != nil {
			h.logger.Warn("history not persisted", "error", err)
		}
	}
	h.hub.Broadcast(NewSchedulerEvent(false, "", false, false))
	writeJSON(w, http.StatusOK, h.sched.GetStatus())
}

// HandleSchedulerStatus returns the scheduler snapshot.
func (h *Handlers) HandleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.GetStatus())
}

// HandleSchedulerHistory returns up to ?limit=N recent cycle results,
// newest first.
func (h *Handlers) HandleSchedulerHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "validation", "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	history := h.sched.History(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// HandleWS upgrades to the read-only event stream.
func (h *Handlers) HandleWS(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.hub.serveWS(upgrader, w, r)
	}
}
