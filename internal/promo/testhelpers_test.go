package promo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promogate/internal/store"
)

// fakeClock is a manually advanced Clock for deterministic time tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixedRandom always returns the same byte, forcing generator collisions.
type fixedRandom struct {
	value byte
}

func (r fixedRandom) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.value
	}
	return len(p), nil
}

const testPIN = "123456"

type engineFixture struct {
	engine *Engine
	clock  *fakeClock
	kv     store.Store
	backup store.Store
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	clock := newFakeClock()
	kv := store.NewMemStore()
	backup := store.NewMemStore()
	engine := newEngineOn(t, kv, backup, clock)
	return &engineFixture{engine: engine, clock: clock, kv: kv, backup: backup}
}

func newEngineOn(t *testing.T, kv, backup store.Store, clock *fakeClock) *Engine {
	t.Helper()
	engine, err := New(Options{
		Store:       kv,
		BackupStore: backup,
		Clock:       clock,
		Admin:       AdminConfig{PIN: testPIN},
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

// issueCode authenticates as admin, mints one code, and logs out again.
func (f *engineFixture) issueCode(t *testing.T, codeType CodeType) PromoCode {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.AuthenticateAdmin(ctx, testPIN))
	code, err := f.engine.GenerateCode(ctx, codeType)
	require.NoError(t, err)
	require.NoError(t, f.engine.EndAdminSession(ctx))
	return code
}
