package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/playstate"
	"github.com/dmitrijs2005/sidequest/internal/testutil/fakeapi"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

type env struct {
	srv   *fakeapi.Server
	api   *client.APIClient
	state *playstate.Store
}

func setup(t *testing.T) *env {
	t.Helper()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)

	api, err := client.NewAPIClient(client.Options{BaseURL: srv.BaseURL()})
	require.NoError(t, err)

	repos, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	return &env{srv: srv, api: api, state: playstate.New(repos.DB)}
}

// ---- fake client ----

// fakeClient overrides the few calls a test needs; anything else panics
// through the nil embedded interface.
type fakeClient struct {
	client.Client

	csrfCalls int
	csrfErr   error

	joinByCodeCalls int
}

func (f *fakeClient) InitCSRF(ctx context.Context) (string, error) {
	f.csrfCalls++
	return "tok", f.csrfErr
}
