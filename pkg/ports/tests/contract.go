package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SessionStoreContract is a reusable test suite that verifies if an adapter complies with ports.SessionStore.
func SessionStoreContract(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()
	sessionID := "contract-session"

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-session")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Save_Load", func(t *testing.T) {
		s := domain.NewSession(sessionID, "flow-1")
		s.Append(domain.Exchange{
			RunID:  "run-1",
			Input:  "message",
			Output: "reply",
			At:     time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
		})
		s.Metadata["origin"] = "contract"
		require.NoError(t, store.Save(ctx, sessionID, s))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "flow-1", loaded.FlowID)
		require.Len(t, loaded.Exchanges, 1)
		assert.Equal(t, "message", loaded.Exchanges[0].Input)
		assert.Equal(t, "reply", loaded.Exchanges[0].Output)
		assert.Equal(t, "contract", loaded.Metadata["origin"])
	})

	t.Run("Save_Isolation", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Exchanges = append(loaded.Exchanges, domain.Exchange{RunID: "local-only"})

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, again.Exchanges, 1)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, sessionID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))
		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, sessionID)
	})
}
