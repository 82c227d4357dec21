package domain

import (
	"context"
	"time"
)

// RunEvent describes one flow invocation.
type RunEvent struct {
	RunID     string        `json:"run_id"`
	FlowID    string        `json:"flow_id"`
	FlowName  string        `json:"flow_name"`
	SessionID string        `json:"session_id,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// TweakEvent is emitted for every template field changed by a tweak.
type TweakEvent struct {
	NodeID string `json:"node_id"`
	Field  string `json:"field"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRunStart     func(context.Context, *RunEvent)
	OnTweakApplied func(context.Context, *TweakEvent)
	OnRunFinish    func(context.Context, *RunEvent)
}

// ComposeHooks returns hooks that call every non-nil callback of each set in order.
func ComposeHooks(sets ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *RunEvent) {
			for _, h := range sets {
				if h.OnRunStart != nil {
					h.OnRunStart(ctx, e)
				}
			}
		},
		OnTweakApplied: func(ctx context.Context, e *TweakEvent) {
			for _, h := range sets {
				if h.OnTweakApplied != nil {
					h.OnTweakApplied(ctx, e)
				}
			}
		},
		OnRunFinish: func(ctx context.Context, e *RunEvent) {
			for _, h := range sets {
				if h.OnRunFinish != nil {
					h.OnRunFinish(ctx, e)
				}
			}
		},
	}
}
