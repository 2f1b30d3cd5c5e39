// Package throttle runs the background monitor that watches a media
// server's active-stream count and adjusts the transfer tool's bandwidth
// limit via its remote-control HTTP endpoint.
package throttle

import (
	"context"
	"time"

	"github.com/uploadop/uploadop/internal/logging"
	"github.com/uploadop/uploadop/internal/mediaserver"
)

// NearestSpeed picks the rung for active concurrent streams: one active
// stream selects the first (least restrictive) entry, each additional stream
// advances one rung, clamping to the last (most restrictive) entry once
// active exceeds the ladder's length.
func NearestSpeed(speeds []string, active int) string {
	if len(speeds) == 0 {
		return ""
	}
	idx := active - 1
	if idx >= len(speeds) {
		idx = len(speeds) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return speeds[idx]
}

// RCClient is the transfer tool's remote-control endpoint, the collaborator
// this monitor drives.
type RCClient interface {
	Throttle(ctx context.Context, speed string) error
	NoThrottle(ctx context.Context) error
	ThrottleActive(ctx context.Context) (bool, error)
}

// MediaClient is the media server collaborator this monitor polls for active
// playback sessions. *mediaserver.Client implements it.
type MediaClient interface {
	Validate(ctx context.Context) error
	ActiveStreams(ctx context.Context) ([]mediaserver.Stream, error)
}

// Config is the monitor's tunable behavior, sourced from config.Plex.
type Config struct {
	PollInterval             time.Duration
	MaxStreamsBeforeThrottle int
	IgnoreLocalStreams       bool
	ThrottleSpeeds           []string
}

// Monitor runs the throttle loop for the lifetime of one upload lock.
type Monitor struct {
	media  MediaClient
	rc     RCClient
	cfg    Config
	log    *logging.Logger
	notify func(message string)

	throttled    bool
	currentSpeed string
}

// NewMonitor builds a throttle monitor. notify may be nil to skip
// notifications.
func NewMonitor(media MediaClient, rc RCClient, cfg Config, log *logging.Logger, notify func(string)) *Monitor {
	if notify == nil {
		notify = func(string) {}
	}
	return &Monitor{media: media, rc: rc, cfg: cfg, log: log, notify: notify}
}

// Run validates reachability and polls until ctx is cancelled, which
// happens when the upload lock is released.
func (m *Monitor) Run(ctx context.Context) {
	if err := m.media.Validate(ctx); err != nil {
		m.log.Warn().Err(err).Msg("throttle monitor disabled: media server unreachable")
		return
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	streams, err := m.media.ActiveStreams(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("throttle monitor: media server poll failed, will retry")
		return
	}

	active := mediaserver.CountActive(streams, m.cfg.IgnoreLocalStreams)
	target := NearestSpeed(m.cfg.ThrottleSpeeds, active)

	rcThrottleActive, err := m.rc.ThrottleActive(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("throttle monitor: RC unreachable, skipping this poll")
		return
	}

	switch {
	case active >= m.cfg.MaxStreamsBeforeThrottle && (!m.throttled || !rcThrottleActive):
		if err := m.rc.Throttle(ctx, target); err != nil {
			m.log.Warn().Err(err).Msg("throttle request failed")
			return
		}
		m.throttled = true
		m.currentSpeed = target
		m.notify("throttled upload to " + target)

	case m.throttled && active < m.cfg.MaxStreamsBeforeThrottle:
		if err := m.rc.NoThrottle(ctx); err != nil {
			m.log.Warn().Err(err).Msg("un-throttle request failed")
			return
		}
		m.throttled = false
		m.currentSpeed = ""
		m.notify("un-throttled upload")

	case m.throttled && active >= m.cfg.MaxStreamsBeforeThrottle && target != m.currentSpeed:
		if err := m.rc.Throttle(ctx, target); err != nil {
			m.log.Warn().Err(err).Msg("throttle adjustment failed")
			return
		}
		m.currentSpeed = target
		m.notify("adjusted upload throttle to " + target)
	}
}
