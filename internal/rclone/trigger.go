package rclone

import (
	"strings"
	"time"
)

// TriggerDef is one configured sleep trigger: if phrase is seen count times inside window, abort with
// sleep.
type TriggerDef struct {
	Phrase      string
	Window      time.Duration
	Count       int
	SleepHours  float64
}

// Abort is emitted when a trigger reaches its threshold.
type Abort struct {
	Phrase     string
	SleepHours float64
}

type triggerState struct {
	count     int
	expiresAt time.Time
}

// Tracker holds a sliding-window occurrence count per configured trigger
// phrase.
type Tracker struct {
	defs   []TriggerDef
	states map[string]*triggerState
}

// NewTracker builds a tracker over defs, preserving insertion order for
// first-abort-wins scanning.
func NewTracker(defs []TriggerDef) *Tracker {
	return &Tracker{
		defs:   defs,
		states: make(map[string]*triggerState, len(defs)),
	}
}

// Feed scans line against every configured trigger in insertion order. The
// first trigger whose threshold is reached on this line wins and stops the
// scan; later triggers on the same line are not evaluated.
func (t *Tracker) Feed(line string, now time.Time) (Abort, bool) {
	lower := strings.ToLower(line)

	for _, def := range t.defs {
		state, ok := t.states[def.Phrase]
		if !ok {
			state = &triggerState{}
			t.states[def.Phrase] = state
		}

		if !state.expiresAt.IsZero() && !now.Before(state.expiresAt) {
			state.count = 0
			state.expiresAt = time.Time{}
		}

		if !strings.Contains(lower, strings.ToLower(def.Phrase)) {
			continue
		}

		if state.count == 0 {
			state.expiresAt = now.Add(def.Window)
		}
		state.count++

		if state.count >= def.Count {
			return Abort{Phrase: def.Phrase, SleepHours: def.SleepHours}, true
		}
	}

	return Abort{}, false
}
