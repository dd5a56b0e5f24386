package sessions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/sessions"
	fakesessionrepo "github.com/jrsteele09/taproom-client/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

func TestProvider_Current(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		p := sessions.NewProvider(fakesessionrepo.NewFakeSessionRepo())
		got, err := p.Current(ctx)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("usable session", func(t *testing.T) {
		repo := fakesessionrepo.NewFakeSessionRepo()
		repo.Seed(validRecord())
		got, err := sessions.NewProvider(repo).Current(ctx)
		require.NoError(t, err)
		require.Equal(t, validRecord(), got)
	})

	t.Run("unusable session", func(t *testing.T) {
		repo := fakesessionrepo.NewFakeSessionRepo()
		r := validRecord()
		r.StoreName = ""
		repo.Seed(r)
		got, err := sessions.NewProvider(repo).Current(ctx)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("broken session layer", func(t *testing.T) {
		repo := fakesessionrepo.NewFakeSessionRepo()
		repo.FailLoad(errors.New("keychain unavailable"))
		_, err := sessions.NewProvider(repo).Current(ctx)
		require.Error(t, err)

		typed, ok := apierror.As(err)
		require.True(t, ok)
		require.Equal(t, 401, typed.StatusCode)
		require.Equal(t, apierror.KindUnauthenticated, typed.Kind())
	})
}
