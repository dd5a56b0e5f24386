package securestore_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/jrsteele09/taproom-client/securestore"
	"github.com/jrsteele09/taproom-client/securestore/repofakes"
	"github.com/stretchr/testify/require"
)

var cheapKDF = securestore.WithKDFParams(securestore.KDFParams{Iterations: 1, MemoryKiB: 64, Parallelism: 1})

func TestSealed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := repofakes.NewMemory()
	sealed, err := securestore.NewSealed(inner, "correct horse", cheapKDF)
	require.NoError(t, err)

	plain := []byte(`{"session_id":"abc"}`)
	require.NoError(t, sealed.Set(ctx, "session.current", plain))

	raw, ok := inner.Raw("session.current")
	require.True(t, ok)
	require.False(t, bytes.Contains(raw, []byte("abc")), "plaintext leaked into storage")

	got, err := sealed.Get(ctx, "session.current")
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestSealed_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	inner := repofakes.NewMemory()
	writer, err := securestore.NewSealed(inner, "one", cheapKDF)
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, "k", []byte("secret")))

	reader, err := securestore.NewSealed(inner, "two", cheapKDF)
	require.NoError(t, err)
	_, err = reader.Get(ctx, "k")
	require.ErrorIs(t, err, securestore.ErrSealed)
}

func TestSealed_KeyIsBound(t *testing.T) {
	ctx := context.Background()
	inner := repofakes.NewMemory()
	sealed, err := securestore.NewSealed(inner, "pass", cheapKDF)
	require.NoError(t, err)
	require.NoError(t, sealed.Set(ctx, "a", []byte("secret")))

	raw, _ := inner.Raw("a")
	inner.Put("b", raw)
	_, err = sealed.Get(ctx, "b")
	require.ErrorIs(t, err, securestore.ErrSealed)
}

func TestSealed_MalformedValue(t *testing.T) {
	inner := repofakes.NewMemory()
	inner.Put("k", []byte("short"))
	sealed, err := securestore.NewSealed(inner, "pass", cheapKDF)
	require.NoError(t, err)

	_, err = sealed.Get(context.Background(), "k")
	require.ErrorIs(t, err, securestore.ErrSealed)
}

func TestSealed_PassesThroughLocked(t *testing.T) {
	inner := repofakes.NewMemory()
	inner.SetLocked(true)
	sealed, err := securestore.NewSealed(inner, "pass", cheapKDF)
	require.NoError(t, err)

	_, err = sealed.Get(context.Background(), "k")
	require.ErrorIs(t, err, securestore.ErrLocked)
	require.ErrorIs(t, sealed.Set(context.Background(), "k", []byte("v")), securestore.ErrLocked)
}

func TestNewSealed_RequiresPassphrase(t *testing.T) {
	_, err := securestore.NewSealed(repofakes.NewMemory(), "")
	require.Error(t, err)
}
