package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// TotalHours is the width of the timeline window: 30 days hourly.
	TotalHours = 30 * 24
	// CenterHour is the offset that maps to the current time.
	CenterHour = TotalHours / 2

	defaultRangeStart = CenterHour - 24
	defaultRangeEnd   = CenterHour + 24
)

// Preset names a quick timeline selection.
type Preset string

const (
	PresetNow       Preset = "now"
	PresetYesterday Preset = "yesterday"
	PresetLastWeek  Preset = "last-week"
)

type presetOffsets struct {
	single     int
	rangeStart int
	rangeEnd   int
}

var presets = map[Preset]presetOffsets{
	PresetNow:       {single: CenterHour, rangeStart: CenterHour - 12, rangeEnd: CenterHour + 12},
	PresetYesterday: {single: CenterHour - 24, rangeStart: CenterHour - 36, rangeEnd: CenterHour - 12},
	PresetLastWeek:  {single: CenterHour - 168, rangeStart: CenterHour - 180, rangeEnd: CenterHour - 156},
}

// TimelineState is a snapshot of the timeline handles.
type TimelineState struct {
	Mode       TimeMode  `json:"mode"`
	Hour       int       `json:"hour"`
	RangeStart int       `json:"rangeStart"`
	RangeEnd   int       `json:"rangeEnd"`
	Selection  TimeRange `json:"selection"`
}

// Timeline maps hour offsets in a 30-day window centered on now to concrete
// times. Single and range handles are kept independently, so switching mode
// never moves either set. It is not safe for concurrent use.
type Timeline struct {
	clock      clockwork.Clock
	mode       TimeMode
	hour       int
	rangeStart int
	rangeEnd   int
}

// NewTimeline creates a single-mode timeline at now using the package clock.
func NewTimeline() *Timeline {
	return NewTimelineWithClock(clock)
}

// NewTimelineWithClock creates a single-mode timeline at now using c.
func NewTimelineWithClock(c clockwork.Clock) *Timeline {
	return &Timeline{
		clock:      c,
		mode:       ModeSingle,
		hour:       CenterHour,
		rangeStart: defaultRangeStart,
		rangeEnd:   defaultRangeEnd,
	}
}

// TimeAt maps an hour offset to a time. Offset CenterHour is now.
func (t *Timeline) TimeAt(offset int) time.Time {
	windowStart := t.clock.Now().Add(-time.Duration(CenterHour) * time.Hour)
	return windowStart.Add(time.Duration(offset) * time.Hour)
}

// Mode returns the active mode.
func (t *Timeline) Mode() TimeMode { return t.mode }

// SetMode switches mode without touching either handle set.
func (t *Timeline) SetMode(m TimeMode) error {
	if _, err := ParseTimeMode(string(m)); err != nil {
		return err
	}
	t.mode = m
	return nil
}

// SetHour moves the single-mode handle.
func (t *Timeline) SetHour(h int) error {
	if !inWindow(h) {
		return ErrHourOutOfRange
	}
	t.hour = h
	return nil
}

// SetRangeStart moves the range start handle if it stays more than one hour
// before the end handle. A rejected move is a no-op and returns false.
func (t *Timeline) SetRangeStart(v int) bool {
	if !inWindow(v) || v >= t.rangeEnd-1 {
		return false
	}
	t.rangeStart = v
	return true
}

// SetRangeEnd moves the range end handle if it stays more than one hour
// after the start handle. A rejected move is a no-op and returns false.
func (t *Timeline) SetRangeEnd(v int) bool {
	if !inWindow(v) || v <= t.rangeStart+1 {
		return false
	}
	t.rangeEnd = v
	return true
}

// ApplyPreset moves the handles of the active mode to a named preset.
func (t *Timeline) ApplyPreset(p Preset) error {
	offsets, ok := presets[p]
	if !ok {
		return ErrUnknownPreset
	}
	if t.mode == ModeSingle {
		t.hour = offsets.single
		return nil
	}
	t.rangeStart = offsets.rangeStart
	t.rangeEnd = offsets.rangeEnd
	return nil
}

// Selection returns the time range for the active mode.
func (t *Timeline) Selection() TimeRange {
	if t.mode == ModeSingle {
		at := t.TimeAt(t.hour)
		return TimeRange{Start: at, End: at, Mode: ModeSingle}
	}
	return TimeRange{Start: t.TimeAt(t.rangeStart), End: t.TimeAt(t.rangeEnd), Mode: ModeRange}
}

// State returns the handles and the current selection.
func (t *Timeline) State() TimelineState {
	return TimelineState{
		Mode:       t.mode,
		Hour:       t.hour,
		RangeStart: t.rangeStart,
		RangeEnd:   t.rangeEnd,
		Selection:  t.Selection(),
	}
}

func inWindow(h int) bool {
	return h >= 0 && h < TotalHours
}
