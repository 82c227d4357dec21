package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks text matching any of the
// patterns in exchange inputs, outputs and metadata values before they are stored.
// The session passed to Save is left untouched. Invalid patterns panic.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	cloned := sess.Clone()
	for i := range cloned.Exchanges {
		cloned.Exchanges[i].Input = m.mask(cloned.Exchanges[i].Input)
		cloned.Exchanges[i].Output = m.mask(cloned.Exchanges[i].Output)
	}
	for k, v := range cloned.Metadata {
		cloned.Metadata[k] = m.mask(v)
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
