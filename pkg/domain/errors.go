package domain

import "errors"

// ErrFlowNotFound is returned when a flow source cannot be located.
var ErrFlowNotFound = errors.New("flow not found")

// ErrInvalidFlow is returned when a flow document cannot be decoded or has no usable graph.
var ErrInvalidFlow = errors.New("invalid flow")

// ErrUnknownNode is returned in strict mode when a tweak key matches no node id or display name.
var ErrUnknownNode = errors.New("tweak references unknown node")

// ErrCodeTweak is returned when a tweak tries to replace a component's source code.
var ErrCodeTweak = errors.New("code fields cannot be overridden by tweaks")

// ErrVariableNotFound is returned when a variable-backed field cannot be resolved.
var ErrVariableNotFound = errors.New("variable not found")

// ErrExecution is wrapped by executor errors caused by the remote engine.
var ErrExecution = errors.New("flow execution failed")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrPresetNotFound is returned when a named tweak preset does not exist.
var ErrPresetNotFound = errors.New("preset not found")
