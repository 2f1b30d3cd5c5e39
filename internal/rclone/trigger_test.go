package rclone

import (
	"testing"
	"time"
)

func TestTracker_FiresOnThreshold(t *testing.T) {
	defs := []TriggerDef{{Phrase: "userRateLimitExceeded", Window: time.Minute, Count: 3, SleepHours: 0.5}}
	tr := NewTracker(defs)
	now := time.Now()

	if _, fired := tr.Feed("error: userRateLimitExceeded", now); fired {
		t.Fatalf("fired on first occurrence, want no fire")
	}
	if _, fired := tr.Feed("error: userRateLimitExceeded", now.Add(time.Second)); fired {
		t.Fatalf("fired on second occurrence, want no fire")
	}
	abort, fired := tr.Feed("error: userRateLimitExceeded", now.Add(2*time.Second))
	if !fired {
		t.Fatalf("did not fire on third occurrence, want fire")
	}
	if abort.Phrase != "userRateLimitExceeded" {
		t.Errorf("abort.Phrase = %q, want userRateLimitExceeded", abort.Phrase)
	}
	if abort.SleepHours != 0.5 {
		t.Errorf("abort.SleepHours = %v, want 0.5", abort.SleepHours)
	}
}

func TestTracker_CaseInsensitiveMatch(t *testing.T) {
	defs := []TriggerDef{{Phrase: "Rate Limit", Window: time.Minute, Count: 1, SleepHours: 1}}
	tr := NewTracker(defs)

	if _, fired := tr.Feed("WARNING: RATE LIMIT hit", time.Now()); !fired {
		t.Errorf("did not fire on case-differing match")
	}
}

func TestTracker_WindowExpiryResetsCount(t *testing.T) {
	defs := []TriggerDef{{Phrase: "rate limit", Window: 10 * time.Second, Count: 3, SleepHours: 1}}
	tr := NewTracker(defs)
	now := time.Now()

	if _, fired := tr.Feed("rate limit", now); fired {
		t.Fatalf("fired too early")
	}
	if _, fired := tr.Feed("rate limit", now.Add(5*time.Second)); fired {
		t.Fatalf("fired too early")
	}

	// window expires between occurrence 2 and 3: must reset, not fire
	if _, fired := tr.Feed("rate limit", now.Add(20*time.Second)); fired {
		t.Errorf("fired after window expiry, want reset")
	}
}

func TestTracker_FirstAbortWinsOnSameLine(t *testing.T) {
	defs := []TriggerDef{
		{Phrase: "first phrase", Window: time.Minute, Count: 1, SleepHours: 1},
		{Phrase: "second phrase", Window: time.Minute, Count: 1, SleepHours: 2},
	}
	tr := NewTracker(defs)

	abort, fired := tr.Feed("this line has first phrase and second phrase", time.Now())
	if !fired {
		t.Fatalf("did not fire, want first-phrase abort")
	}
	if abort.Phrase != "first phrase" {
		t.Errorf("abort.Phrase = %q, want %q", abort.Phrase, "first phrase")
	}
}

func TestTracker_NonMatchingLineDoesNotFire(t *testing.T) {
	defs := []TriggerDef{{Phrase: "rate limit", Window: time.Minute, Count: 1, SleepHours: 1}}
	tr := NewTracker(defs)

	if _, fired := tr.Feed("everything is fine", time.Now()); fired {
		t.Errorf("fired on non-matching line")
	}
}
