package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)

func newTestTimeline() *Timeline {
	return NewTimelineWithClock(clockwork.NewFakeClockAt(fixedNow))
}

func TestTimeline_OffsetMapping(t *testing.T) {
	tl := newTestTimeline()

	assert.Equal(t, fixedNow, tl.TimeAt(CenterHour))
	assert.Equal(t, fixedNow.Add(-24*time.Hour), tl.TimeAt(336))
	assert.Equal(t, fixedNow.Add(-15*24*time.Hour), tl.TimeAt(0))
	assert.Equal(t, fixedNow.Add(359*time.Hour), tl.TimeAt(TotalHours-1))
}

func TestTimeline_DefaultSelectionIsNow(t *testing.T) {
	tl := newTestTimeline()

	sel := tl.Selection()
	assert.Equal(t, ModeSingle, sel.Mode)
	assert.Equal(t, fixedNow, sel.Start)
	assert.Equal(t, sel.Start, sel.End)
}

func TestTimeline_SetHour(t *testing.T) {
	tl := newTestTimeline()

	require.NoError(t, tl.SetHour(336))
	assert.Equal(t, fixedNow.Add(-24*time.Hour), tl.Selection().Start)

	require.ErrorIs(t, tl.SetHour(-1), ErrHourOutOfRange)
	require.ErrorIs(t, tl.SetHour(TotalHours), ErrHourOutOfRange)
	assert.Equal(t, 336, tl.State().Hour)
}

func TestTimeline_RangeSelection(t *testing.T) {
	tl := newTestTimeline()
	require.NoError(t, tl.SetMode(ModeRange))

	sel := tl.Selection()
	assert.Equal(t, ModeRange, sel.Mode)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), sel.Start)
	assert.Equal(t, fixedNow.Add(24*time.Hour), sel.End)
}

func TestTimeline_RangeStartRejectedNearEnd(t *testing.T) {
	tl := newTestTimeline()
	tl.SetMode(ModeRange)

	assert.False(t, tl.SetRangeStart(383), "start must stay below end-1")
	assert.False(t, tl.SetRangeStart(384))
	assert.False(t, tl.SetRangeStart(500))
	assert.False(t, tl.SetRangeStart(-1))

	st := tl.State()
	assert.Equal(t, 336, st.RangeStart)
	assert.Equal(t, 384, st.RangeEnd)

	assert.True(t, tl.SetRangeStart(382))
	assert.Equal(t, 382, tl.State().RangeStart)
}

func TestTimeline_RangeEndRejectedNearStart(t *testing.T) {
	tl := newTestTimeline()
	tl.SetMode(ModeRange)

	assert.False(t, tl.SetRangeEnd(337))
	assert.False(t, tl.SetRangeEnd(300))
	assert.False(t, tl.SetRangeEnd(TotalHours))
	assert.Equal(t, 384, tl.State().RangeEnd)

	assert.True(t, tl.SetRangeEnd(338))
	assert.Equal(t, 338, tl.State().RangeEnd)
}

func TestTimeline_ModeSwitchKeepsHandles(t *testing.T) {
	tl := newTestTimeline()
	require.NoError(t, tl.SetHour(100))

	require.NoError(t, tl.SetMode(ModeRange))
	require.True(t, tl.SetRangeStart(200))
	require.True(t, tl.SetRangeEnd(250))

	require.NoError(t, tl.SetMode(ModeSingle))
	assert.Equal(t, tl.TimeAt(100), tl.Selection().Start)

	require.NoError(t, tl.SetMode(ModeRange))
	sel := tl.Selection()
	assert.Equal(t, tl.TimeAt(200), sel.Start)
	assert.Equal(t, tl.TimeAt(250), sel.End)

	require.ErrorIs(t, tl.SetMode("weekly"), ErrInvalidMode)
	assert.Equal(t, ModeRange, tl.Mode())
}

func TestTimeline_Presets(t *testing.T) {
	tl := newTestTimeline()

	require.NoError(t, tl.ApplyPreset(PresetYesterday))
	assert.Equal(t, CenterHour-24, tl.State().Hour)
	require.NoError(t, tl.ApplyPreset(PresetLastWeek))
	assert.Equal(t, CenterHour-168, tl.State().Hour)

	tl.SetMode(ModeRange)
	require.NoError(t, tl.ApplyPreset(PresetNow))
	st := tl.State()
	assert.Equal(t, CenterHour-12, st.RangeStart)
	assert.Equal(t, CenterHour+12, st.RangeEnd)
	assert.Equal(t, CenterHour-168, st.Hour, "range preset leaves the single handle alone")

	require.ErrorIs(t, tl.ApplyPreset("tomorrow"), ErrUnknownPreset)
}

func TestTimeline_FollowsClock(t *testing.T) {
	fc := clockwork.NewFakeClockAt(fixedNow)
	tl := NewTimelineWithClock(fc)

	fc.Advance(2 * time.Hour)
	assert.Equal(t, fixedNow.Add(2*time.Hour), tl.Selection().Start)
}

func TestNewTimeline_UsesPackageClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(fixedNow))
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, fixedNow, NewTimeline().Selection().Start)
}
