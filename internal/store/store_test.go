package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"menuca.ca/restotool/internal/link"
)

func newTestStore(t *testing.T) *Store {
	s, err := Open(context.Background(), "file::memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrinterIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.LoadPrinter(ctx)
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, s.SavePrinter(ctx, link.Device{Name: "RPP02N", Address: "AA:BB:CC:DD:EE:01"}))
	require.NoError(t, s.SavePrinter(ctx, link.Device{Name: "MTP-II", Address: "AA:BB:CC:DD:EE:02"}))

	d, err = s.LoadPrinter(ctx)
	require.NoError(t, err)
	assert.Equal(t, &link.Device{Name: "MTP-II", Address: "AA:BB:CC:DD:EE:02"}, d)

	var rows int
	require.NoError(t, s.Db.QueryRow(`SELECT COUNT(*) FROM paired_printer`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestPreferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Preference(ctx, "_wv_lang")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPreference(ctx, "_wv_lang", "fr"))
	require.NoError(t, s.SetPreference(ctx, "_wv_lang", "en"))
	v, ok, err := s.Preference(ctx, "_wv_lang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "en", v)

	require.NoError(t, s.DeletePreference(ctx, "_wv_lang"))
	_, ok, err = s.Preference(ctx, "_wv_lang")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSatisfiesIdentityStore(t *testing.T) {
	var _ link.IdentityStore = newTestStore(t)
}
