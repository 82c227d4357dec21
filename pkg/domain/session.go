package domain

import "time"

// Session is the record of the exchanges made under one session identifier.
type Session struct {
	ID        string            `json:"id"`
	FlowID    string            `json:"flow_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Exchanges []Exchange        `json:"exchanges,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Exchange is one input/output pair of a session.
type Exchange struct {
	RunID  string    `json:"run_id"`
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// NewSession creates an empty session bound to a flow.
func NewSession(id, flowID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		FlowID:    flowID,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]string),
	}
}

// Append records an exchange and bumps UpdatedAt.
func (s *Session) Append(ex Exchange) {
	if ex.At.IsZero() {
		ex.At = time.Now().UTC()
	}
	s.Exchanges = append(s.Exchanges, ex)
	s.UpdatedAt = ex.At
}

// Clone returns a copy that shares no slices or maps with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Exchanges = append([]Exchange(nil), s.Exchanges...)
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
