package api

import (
	"time"

	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Event is the wrapper for everything pushed over the /ws stream.
type Event struct {
	Type      string    `json:"type"` // "cycle", "scheduler", "config"
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewCycleEvent wraps a finished cycle for the stream.
func NewCycleEvent(result types.CycleResult) Event {
	return Event{Type: "cycle", Timestamp: time.Now(), Data: result}
}

// SchedulerEvent notifies start/stop transitions.
type SchedulerEvent struct {
	Running   bool   `json:"running"`
	Interval  string `json:"interval,omitempty"`
	KROnly    bool   `json:"kr_only"`
	USEnabled bool   `json:"us_enabled"`
}

func NewSchedulerEvent(running bool, interval string, krOnly, usEnabled bool) Event {
	return Event{
		Type:      "scheduler",
		Timestamp: time.Now(),
		Data: SchedulerEvent{
			Running:   running,
			Interval:  interval,
			KROnly:    krOnly,
			USEnabled: usEnabled,
		},
	}
}

// NewConfigEvent announces a settings replacement.
func NewConfigEvent(settings any) Event {
	return Event{Type: "config", Timestamp: time.Now(), Data: settings}
}
