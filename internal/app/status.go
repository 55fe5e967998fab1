package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voicekey/internal/action"
	"github.com/MrWong99/voicekey/internal/command"
	"github.com/MrWong99/voicekey/internal/health"
	"github.com/MrWong99/voicekey/internal/observe"
	"github.com/MrWong99/voicekey/internal/pipeline"
	"github.com/MrWong99/voicekey/internal/recognizer"
)

// Status is the JSON document served on /status.
type Status struct {
	Running    bool             `json:"running"`
	Recording  bool             `json:"recording"`
	State      string           `json:"state"`
	Breaker    string           `json:"breaker"`
	Connected  bool             `json:"connected"`
	Pipeline   pipeline.Stats   `json:"pipeline"`
	Recognizer recognizer.Stats `json:"recognizer"`
	Commands   command.Stats    `json:"commands"`
	Actions    action.Stats     `json:"actions"`
}

// Status returns a snapshot of every component's statistics.
func (a *App) Status() Status {
	return Status{
		Running:    a.pipe.Running(),
		Recording:  a.pipe.Recording(),
		State:      a.rec.State().String(),
		Breaker:    a.disp.BreakerState().String(),
		Connected:  a.disp.Connected(),
		Pipeline:   a.pipe.Stats(),
		Recognizer: a.rec.Stats(),
		Commands:   a.Matcher().Stats(),
		Actions:    a.disp.Stats(),
	}
}

// Checkers returns the readiness checks: the transport is connected, the
// recognizer is not in its error state and the pipeline is running.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{
		health.Condition("transport", a.disp.Connected, "transport not connected"),
		{
			Name: "recognizer",
			Check: func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if a.rec.State() == recognizer.StateError {
					return errors.New("recognizer in error state")
				}
				return nil
			},
		},
		health.Condition("pipeline", a.pipe.Running, "pipeline not running"),
	}
}

// Handler returns the status server's routes wrapped in the observe
// middleware: /healthz, /readyz, /status and /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.Checkers()...).
		WithStatus(func() any { return a.Status() }).
		Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(a.metrics)(mux)
}
