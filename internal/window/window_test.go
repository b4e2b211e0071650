package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"during/internal/clock"
	"during/internal/timespec"
)

func TestOracleFollowsClock(t *testing.T) {
	// Monday.
	mc := clock.NewManual(time.Date(2024, 1, 1, 8, 59, 0, 0, time.UTC))
	o := New(timespec.MustParse("12345[09:00-17:00]"), mc)

	require.False(t, o.Active())
	mc.Advance(time.Minute)
	require.True(t, o.Active())
	mc.Set(time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC))
	require.False(t, o.Active(), "saturday")
}

func TestOracleApplySwapsScheduleAndZone(t *testing.T) {
	mc := clock.NewManual(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	o := New(timespec.MustParse("1[09:00-10:00]"), mc)
	require.False(t, o.Active())

	next := timespec.MustParse("1[11:00-13:00]")
	o.Apply(next, mc)
	require.True(t, o.Active())
	require.Same(t, next, o.Schedule())
	require.Same(t, mc, o.Clock())

	// Noon UTC is 21:00 in Tokyo.
	tokyo := clock.InZone(time.FixedZone("JST", 9*3600))
	o.Apply(next, tokyo)
	require.False(t, o.ActiveAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	require.True(t, o.ActiveAt(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
}

func TestFunc(t *testing.T) {
	active := false
	var a Activity = Func(func() bool { return active })
	require.False(t, a.Active())
	active = true
	require.True(t, a.Active())
}
