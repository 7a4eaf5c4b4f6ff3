package housekeeping

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/housekeepd/internal/globals"
)

// base is an arbitrary "now" well past MinTimestamp.
const base int64 = 1_700_000_000

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(sec int64) *fakeClock {
	return &fakeClock{t: time.Unix(sec, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.Unix(sec, 0)
}

type deviceCall struct {
	ID   int
	Cmd  string
	Args []any
}

type recordingDispatcher struct {
	calls []deviceCall
	err   error
}

func (d *recordingDispatcher) CallDevice(_ context.Context, id int, cmd string, args ...any) error {
	d.calls = append(d.calls, deviceCall{ID: id, Cmd: cmd, Args: args})
	return d.err
}

type fixture struct {
	vars    *globals.MemoryStore
	store   *Store
	clock   *fakeClock
	devices *recordingDispatcher
	keeper  *Keeper
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		vars:    globals.NewMemoryStore(),
		clock:   newFakeClock(base),
		devices: &recordingDispatcher{},
	}
	f.store = NewStore(f.vars, DefaultSlot)
	_, err := f.store.Init(context.Background())
	require.NoError(t, err)

	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.keeper = New(f.store, NewValidator(f.vars), f.vars, f.devices, opts...)
	return f
}

// slot returns the raw persisted schedule.
func (f *fixture) slot(t *testing.T) string {
	t.Helper()
	raw, err := f.vars.Get(context.Background(), DefaultSlot)
	require.NoError(t, err)
	return raw
}

func (f *fixture) setSlot(t *testing.T, raw string) {
	t.Helper()
	require.NoError(t, f.vars.Set(context.Background(), DefaultSlot, raw))
}
