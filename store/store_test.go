package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/starlight/donation/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	sqliteFile, err := OpenSQLite(filepath.Join(t.TempDir(), "donation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteFile.Close() })

	sqliteMem, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteMem.Close() })

	return map[string]Store{
		"memory":        NewMemory(),
		"sqlite":        sqliteFile,
		"sqlite-memory": sqliteMem,
	}
}

func TestStore_loadSave(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			contract := keypair.MustRandom().Address()

			_, err := s.Load(ctx, contract)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateActive}))
			r, err := s.Load(ctx, contract)
			require.NoError(t, err)
			assert.Equal(t, Record{State: state.DonationStateActive}, r)

			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateClosed}))
			r, err = s.Load(ctx, contract)
			require.NoError(t, err)
			assert.Equal(t, Record{State: state.DonationStateClosed}, r)

			// Saving the same closed state again is allowed.
			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateClosed}))
		})
	}
}

func TestStore_regression(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			contract := keypair.MustRandom().Address()
			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateClosed}))

			err := s.Save(ctx, contract, Record{State: state.DonationStateActive})
			assert.ErrorIs(t, err, ErrRegression)

			r, err := s.Load(ctx, contract)
			require.NoError(t, err)
			assert.Equal(t, Record{State: state.DonationStateClosed}, r)
		})
	}
}

func TestStore_unknownState(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			contract := keypair.MustRandom().Address()
			err := s.Save(ctx, contract, Record{State: state.DonationState("paused")})
			assert.Error(t, err)
			_, err = s.Load(ctx, contract)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_isolatesContracts(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			a := keypair.MustRandom().Address()
			b := keypair.MustRandom().Address()
			require.NoError(t, s.Save(ctx, a, Record{State: state.DonationStateClosed}))
			require.NoError(t, s.Save(ctx, b, Record{State: state.DonationStateActive}))

			r, err := s.Load(ctx, b)
			require.NoError(t, err)
			assert.Equal(t, Record{State: state.DonationStateActive}, r)
		})
	}
}

func TestSQLite_reopen(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "nested", "donation.db")
	contract := keypair.MustRandom().Address()

	s, err := OpenSQLite(file)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateClosed}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(file)
	require.NoError(t, err)
	defer s.Close()
	r, err := s.Load(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, Record{State: state.DonationStateClosed}, r)
}

func TestStore_sweepPending(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			contract := keypair.MustRandom().Address()

			err := s.Save(ctx, contract, Record{State: state.DonationStateActive, SweepPending: true})
			assert.EqualError(t, err, "saving "+contract+": sweep pending on active donation")

			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateActive}))
			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateClosed, SweepPending: true}))
			r, err := s.Load(ctx, contract)
			require.NoError(t, err)
			assert.Equal(t, Record{State: state.DonationStateClosed, SweepPending: true}, r)

			require.NoError(t, s.Save(ctx, contract, Record{State: state.DonationStateClosed}))
			r, err = s.Load(ctx, contract)
			require.NoError(t, err)
			assert.Equal(t, Record{State: state.DonationStateClosed}, r)
		})
	}
}
