package modules

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/housekeepd/internal/housekeeping"
)

type registration struct {
	targets []housekeeping.Target
	delay   time.Duration
	cmd     housekeeping.Command
}

type fakeKeeper struct {
	registered []registration
}

func (k *fakeKeeper) Register(_ context.Context, targets []housekeeping.Target, delay time.Duration, cmd housekeeping.Command) error {
	k.registered = append(k.registered, registration{targets, delay, cmd})
	return nil
}

func (k *fakeKeeper) RunDue(context.Context) (housekeeping.RunReport, error) {
	return housekeeping.RunReport{}, nil
}

func (k *fakeKeeper) Pending(context.Context) (housekeeping.Schedule, error) {
	return housekeeping.Schedule{}, nil
}

func (k *fakeKeeper) Cancel(context.Context, []housekeeping.Target) (int, error) {
	return 0, nil
}

func TestDelayFromSeconds(t *testing.T) {
	d, err := delayFromSeconds(1.5)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = delayFromSeconds(0)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = delayFromSeconds(-1)
	assert.ErrorIs(t, err, housekeeping.ErrNegativeDelay)

	for _, sec := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 9.3e9, 1e300} {
		_, err := delayFromSeconds(sec)
		assert.ErrorIs(t, err, housekeeping.ErrInvalidDelay, "%v", sec)
	}
}

func TestHousekeepingModule_Schedule(t *testing.T) {
	keeper := &fakeKeeper{}
	L := lua.NewState()
	defer L.Close()
	L.PreloadModule("housekeeping", NewHousekeepingModule(keeper).Loader)

	require.NoError(t, L.DoString(`
local hk = require("housekeeping")
ok1, err1 = hk.schedule({4, 5}, 60, {"setValue", 30})
ok2, err2 = hk.schedule({4}, 1e10, "turnOff")
ok3, err3 = hk.schedule({4}, 0/0, "turnOff")
`))

	assert.Equal(t, lua.LTrue, L.GetGlobal("ok1"))
	assert.Equal(t, lua.LFalse, L.GetGlobal("ok2"))
	assert.Contains(t, L.GetGlobal("err2").String(), "invalid delay")
	assert.Equal(t, lua.LFalse, L.GetGlobal("ok3"))
	assert.Contains(t, L.GetGlobal("err3").String(), "invalid delay")

	require.Len(t, keeper.registered, 1)
	assert.Equal(t, []housekeeping.Target{"4", "5"}, keeper.registered[0].targets)
	assert.Equal(t, time.Minute, keeper.registered[0].delay)
	assert.Equal(t, housekeeping.OneArg{Cmd: "setValue", Value: 30.0}, keeper.registered[0].cmd)
}
