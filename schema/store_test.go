package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSchema = `
nodes:
  User:
    table: Users
    properties:
      - name: id
        column: Id
        type: string
        required: true
tables:
  Users:
    fields: [Id]
`

func TestStoreReload(t *testing.T) {
	initial := loadTestMapping(t)
	store := NewStore(initial)

	assert.Equal(t, initial, store.Load())

	err := store.Reload([]byte(minimalSchema))
	require.NoError(t, err)

	next := store.Load()
	assert.NotEqual(t, initial, next)

	_, err = next.ResolveTable("Device")
	assert.ErrorIs(t, err, ErrResolution)
}

func TestStoreReloadKeepsSnapshotOnError(t *testing.T) {
	initial := loadTestMapping(t)
	store := NewStore(initial)

	err := store.Reload([]byte("nodes: []"))
	require.Error(t, err)

	// The invalid document must not replace the working snapshot.
	assert.Equal(t, initial, store.Load())
}

func TestStoreReplaceReturnsPrevious(t *testing.T) {
	initial := loadTestMapping(t)
	store := NewStore(initial)

	next, err := Parse([]byte(minimalSchema))
	require.NoError(t, err)

	previous := store.Replace(next)
	assert.Equal(t, initial, previous)
	assert.Equal(t, next, store.Load())
}

func TestStoreConcurrentReaders(t *testing.T) {
	store := NewStore(loadTestMapping(t))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m := store.Load()
				_, err := m.ResolveTable("User")
				assert.NoError(t, err)
			}
		}()
	}
	for range 10 {
		require.NoError(t, store.Reload([]byte(minimalSchema)))
	}
	wg.Wait()
}
