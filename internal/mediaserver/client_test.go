package mediaserver

import "testing"

func TestCountActive_CountsPlayingAndBuffering(t *testing.T) {
	streams := []Stream{
		{State: "playing"},
		{State: "buffering"},
		{State: "paused"},
	}
	if got := CountActive(streams, false); got != 2 {
		t.Errorf("CountActive() = %d, want 2", got)
	}
}

func TestCountActive_ExcludesLocalWhenConfigured(t *testing.T) {
	streams := []Stream{
		{State: "playing", Local: true},
		{State: "playing", Local: false},
	}
	if got := CountActive(streams, true); got != 1 {
		t.Errorf("CountActive(ignoreLocal=true) = %d, want 1", got)
	}
	if got := CountActive(streams, false); got != 2 {
		t.Errorf("CountActive(ignoreLocal=false) = %d, want 2", got)
	}
}
