package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtroode/jobboard-client/internal/clock"
	"github.com/dtroode/jobboard-client/internal/config"
	"github.com/dtroode/jobboard-client/internal/mocks"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/store/memory"
	"github.com/dtroode/jobboard-client/internal/testutil"
)

const (
	testTicket = "tmp-ticket-0123456789"
	testToken  = "opaque-session-token"
)

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Lockout: config.Lockout{Threshold: 5, Window: 5 * time.Minute},
		TwoFactor: config.TwoFactor{
			TicketTTL:       10 * time.Minute,
			ExpiredRedirect: 5 * time.Second,
			InvalidRedirect: 10 * time.Second,
		},
		Password: config.Password{ResetMinLength: 6},
	}
}

type fixture struct {
	api     *mocks.AuthAPI
	store   *memory.Store
	clock   *clock.Fake
	session *Session
	snaps   []model.Snapshot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		api:   mocks.NewAuthAPI(t),
		store: memory.New(),
		clock: clock.NewFake(testStart),
	}
	f.session = NewSession(f.api, f.store, testConfig(), f.clock, testutil.MakeNoopLogger())
	f.session.Subscribe(func(s model.Snapshot) { f.snaps = append(f.snaps, s) })
	t.Cleanup(f.session.Close)
	return f
}

func (f *fixture) durable(key string) (string, bool) {
	v, ok := f.store.Snapshot(model.ScopeDurable)[key]
	return v, ok
}

func (f *fixture) ephemeral(key string) (string, bool) {
	v, ok := f.store.Snapshot(model.ScopeEphemeral)[key]
	return v, ok
}

func (f *fixture) seedSession(t *testing.T, tok string, user model.User) {
	t.Helper()
	ctx := context.Background()
	data, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyUser, string(data)))
	require.NoError(t, f.store.Set(ctx, model.ScopeDurable, model.KeyToken, tok))
}

func testUser() model.User {
	return model.User{ID: "u-1", Username: "alice", Email: "alice@example.com"}
}
