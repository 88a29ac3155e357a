package checkpoint

import (
	"testing"
	"time"

	"github.com/askdb/askdb/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	state := models.NewQueryContext("how many orders", "s1", models.ProviderOpenAI, models.AuthContext{PrincipalID: "alice"})

	require.NoError(t, store.Save(t.Context(), "q1", state))

	loaded, err := store.Load(t.Context(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "how many orders", loaded.Input.Question)
	assert.Equal(t, "alice", loaded.Auth.PrincipalID)
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	_, err := store.Load(t.Context(), "absent")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Nanosecond)
	state := models.NewQueryContext("q", "s1", models.ProviderOpenAI, models.AuthContext{})

	require.NoError(t, store.Save(t.Context(), "q1", state))
	time.Sleep(time.Millisecond)

	_, err := store.Load(t.Context(), "q1")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	state := models.NewQueryContext("q", "s1", models.ProviderOpenAI, models.AuthContext{})

	require.NoError(t, store.Save(t.Context(), "q1", state))
	require.NoError(t, store.Delete(t.Context(), "q1"))

	_, err := store.Load(t.Context(), "q1")
	assert.True(t, IsNotFound(err))

	assert.NoError(t, store.Delete(t.Context(), "q1"))
}
