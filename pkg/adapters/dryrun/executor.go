// Package dryrun provides an Executor that never runs anything.
// It answers with the input value and a summary of the prepared flow, which
// makes it useful for validating tweaks offline and for tests.
package dryrun

import (
	"context"
	"sync"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
)

// Call is one recorded invocation.
type Call struct {
	Flow  *domain.Flow
	Input domain.RunInput
}

// Executor implements ports.Executor without side effects.
type Executor struct {
	mu     sync.Mutex
	calls  []Call
	err    error
	strict bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithStrictVariables declares that this executor has no variable store, so
// load_from_db fields must all be resolved before a run reaches it.
func WithStrictVariables() Option {
	return func(e *Executor) {
		e.strict = true
	}
}

// New creates a dry-run executor.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFailing creates an executor whose every call returns err.
func NewFailing(err error) *Executor {
	return &Executor{err: err}
}

// ResolvesVariables reports whether unresolved load_from_db fields are
// tolerated. A dry run passes them through unless strict.
func (e *Executor) ResolvesVariables() bool {
	return !e.strict
}

// Execute records the call and echoes the input.
func (e *Executor) Execute(ctx context.Context, f *domain.Flow, in domain.RunInput) (*domain.RunResponse, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Flow: flow.Clone(f), Input: in})
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}

	summary := flow.Summarize(f)
	return &domain.RunResponse{
		SessionID: in.SessionID,
		Outputs: []domain.RunOutputs{{
			Inputs: map[string]any{"input_value": in.InputValue},
			Outputs: []domain.ResultData{{
				ComponentID:          "dryrun",
				ComponentDisplayName: "Dry Run",
				Results:              map[string]any{"message": map[string]any{"text": in.InputValue}},
				Artifacts:            map[string]any{"flow": summary},
			}},
		}},
	}, nil
}

// Calls returns the recorded invocations in order.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Last returns the most recent invocation.
func (e *Executor) Last() (Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return Call{}, false
	}
	return e.calls[len(e.calls)-1], true
}
