package versioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id := 11
	for _, v := range []SchemaVersion{
		{Subject: "b", Version: 1, Definition: `{"x":"string"}`, IsActive: true},
		{Subject: "a", Version: 2, Definition: `{"y":"long"}`, IsActive: false, SchemaID: &id},
		{Subject: "a", Version: 1, Definition: `{"y":"integer"}`, IsActive: true},
	} {
		_, err := store.AppendVersionAtomic(ctx, v)
		require.NoError(t, err)
	}

	t.Run("conflict", func(t *testing.T) {
		_, err := store.AppendVersionAtomic(ctx, SchemaVersion{Subject: "a", Version: 1, Definition: "{}"})
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := store.AppendVersionAtomic(ctx, SchemaVersion{Subject: "a", Version: 0, Definition: "{}"})
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("versions are ordered", func(t *testing.T) {
		versions, err := store.ListVersions(ctx, "a")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 1, versions[0].Version)
		assert.Equal(t, 2, versions[1].Version)
	})

	t.Run("readers", func(t *testing.T) {
		all, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, uint(1), all[0].ID)

		active, err := store.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		subjects, err := store.ListSubjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, subjects)

		v, err := store.GetVersion(ctx, "a", 2)
		require.NoError(t, err)
		assert.Equal(t, `{"y":"long"}`, v.Definition)

		_, err = store.GetVersion(ctx, "a", 9)
		assert.ErrorIs(t, err, ErrNotFound)

		v, err = store.GetBySchemaID(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, "a", v.Subject)

		_, err = store.GetBySchemaID(ctx, 12)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.ListVersions(cctx, "a")
		assert.ErrorIs(t, err, ErrStorageRead)
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		versions, err := store.ListVersions(ctx, "a")
		require.NoError(t, err)
		versions[0].Definition = "mutated"

		again, err := store.ListVersions(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, `{"y":"integer"}`, again[0].Definition)
	})
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	v, ok := Latest([]SchemaVersion{{Version: 2}, {Version: 5}, {Version: 3}})
	require.True(t, ok)
	assert.Equal(t, 5, v.Version)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{DefaultCompatibility: "SOMETIMES", FirstSighting: "maybe"}.withDefaults()
	assert.Equal(t, DefaultStoreTimeout, cfg.StoreTimeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultResolverTimeout, cfg.ResolverTimeout)
	assert.Equal(t, DefaultRetryBackoff, cfg.RetryBackoff)
	assert.Equal(t, CompatibilityBackward, cfg.DefaultCompatibility)
	assert.Equal(t, FirstSightingRegister, cfg.FirstSighting)
	assert.Equal(t, DefaultRegisteredBy, cfg.RegisteredBy)
	assert.Equal(t, BackendMemory, cfg.Backend)

	cfg = Config{DefaultCompatibility: CompatibilityFull}.withDefaults()
	assert.Equal(t, CompatibilityFull, cfg.DefaultCompatibility)
}

func TestConfigSharedStore(t *testing.T) {
	tests := []struct {
		backend string
		want    bool
	}{
		{"", false},
		{BackendMemory, false},
		{BackendPostgres, true},
		{BackendEtcd, true},
	}
	for _, tt := range tests {
		t.Run("backend "+tt.backend, func(t *testing.T) {
			assert.Equal(t, tt.want, Config{Backend: tt.backend}.SharedStore())
		})
	}
}
