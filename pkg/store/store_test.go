package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories lets every contract test run against both implementations.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreCreateGet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			d, err := s.Create(ctx, DefinitionInput{Name: "tea", Duration: 180, SoundID: "bell"})
			require.NoError(t, err)
			assert.NotEmpty(t, d.ID)
			assert.Equal(t, "tea", d.Name)
			assert.Equal(t, 180, d.Duration)

			got, err := s.Get(ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, d.ID, got.ID)
			assert.Equal(t, "tea", got.Name)
			assert.Equal(t, 180, got.Duration)
			assert.Equal(t, "bell", got.SoundID)
		})
	}
}

func TestStoreValidation(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			_, err := s.Create(ctx, DefinitionInput{Name: "zero", Duration: 0})
			assert.ErrorIs(t, err, ErrInvalidDuration)

			_, err = s.Create(ctx, DefinitionInput{Name: "  ", Duration: 5})
			assert.ErrorIs(t, err, ErrInvalidName)

			d, err := s.Create(ctx, DefinitionInput{Name: "ok", Duration: 5})
			require.NoError(t, err)

			_, err = s.Update(ctx, d.ID, DefinitionInput{Name: "ok", Duration: -1})
			assert.ErrorIs(t, err, ErrInvalidDuration)

			assert.ErrorIs(t, s.UpdateDuration(ctx, d.ID, 0), ErrInvalidDuration)
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Update(ctx, "missing", DefinitionInput{Name: "x", Duration: 1})
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, s.UpdateDuration(ctx, "missing", 10), ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
		})
	}
}

func TestStoreUpdateAndDelete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			d, err := s.Create(ctx, DefinitionInput{Name: "focus", Duration: 1500})
			require.NoError(t, err)

			updated, err := s.Update(ctx, d.ID, DefinitionInput{Name: "deep focus", Duration: 3000})
			require.NoError(t, err)
			assert.Equal(t, "deep focus", updated.Name)
			assert.Equal(t, 3000, updated.Duration)

			require.NoError(t, s.UpdateDuration(ctx, d.ID, 10))
			got, err := s.Get(ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, 10, got.Duration)
			assert.Equal(t, "deep focus", got.Name)

			require.NoError(t, s.Delete(ctx, d.ID))
			_, err = s.Get(ctx, d.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			empty, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			for _, n := range []string{"a", "b", "c"} {
				_, err := s.Create(ctx, DefinitionInput{Name: n, Duration: 60})
				require.NoError(t, err)
			}

			defs, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, defs, 3)

			names := map[string]bool{}
			for _, d := range defs {
				names[d.Name] = true
			}
			assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, names)
		})
	}
}

func TestMemoryStorePut(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Definition{ID: "fixed", Name: "fixture", Duration: 3})

	d, err := s.Get(context.Background(), "fixed")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Duration)
}
