package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	StudyDuration = 25 * time.Minute
	BreakDuration = 5 * time.Minute
)

// studyTimer alternates study and break periods. It starts paused; when a
// period runs out it switches to the other one and pauses again.
type studyTimer struct {
	clock   timer.Model
	active  bool
	onBreak bool
}

func newStudyTimer() studyTimer {
	return studyTimer{clock: timer.New(StudyDuration)}
}

func (t studyTimer) duration() time.Duration {
	if t.onBreak {
		return BreakDuration
	}
	return StudyDuration
}

// Toggle starts or pauses the countdown.
func (t studyTimer) Toggle() (studyTimer, tea.Cmd) {
	t.active = !t.active
	if t.active {
		return t, t.clock.Start()
	}
	return t, t.clock.Stop()
}

// Reset returns to a paused study period.
func (t studyTimer) Reset() studyTimer {
	return newStudyTimer()
}

// SwitchMode flips between study and break and pauses. A fresh clock gets a
// new id, so ticks still in flight for the old one are ignored.
func (t studyTimer) SwitchMode() studyTimer {
	t.onBreak = !t.onBreak
	t.active = false
	t.clock = timer.New(t.duration())
	return t
}

// Update forwards clock messages. finished reports that a period ran out.
func (t studyTimer) Update(msg tea.Msg) (next studyTimer, cmd tea.Cmd, finished bool) {
	switch msg := msg.(type) {
	case timer.TimeoutMsg:
		if msg.ID != t.clock.ID() {
			return t, nil, false
		}
		return t.SwitchMode(), nil, true
	case timer.TickMsg, timer.StartStopMsg:
		t.clock, cmd = t.clock.Update(msg)
		return t, cmd, false
	}
	return t, nil, false
}

func (t studyTimer) Label() string {
	if t.onBreak {
		return "Break"
	}
	return "Study"
}

// Remaining formats the time left as M:SS.
func (t studyTimer) Remaining() string {
	left := max(t.clock.Timeout, 0)
	secs := int(left.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
