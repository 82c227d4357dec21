package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/langrun/pkg/adapters/memory"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	tests.SessionStoreContract(t, memory.NewStore())
}

func TestVariables(t *testing.T) {
	vars := memory.NewVariables(map[string]string{"ASTRA_DB_APPLICATION_TOKEN": "tok"})
	ctx := context.Background()

	v, err := vars.Get(ctx, "ASTRA_DB_APPLICATION_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	_, err = vars.Get(ctx, "GOOGLE_API_KEY")
	assert.ErrorIs(t, err, domain.ErrVariableNotFound)

	vars.Set("GOOGLE_API_KEY", "key")
	v, err = vars.Get(ctx, "GOOGLE_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "key", v)
}
