// Package scheduler fires each uploader's scheduled check on its own
// interval timer, using a Start(ctx)/Stop poll-loop shape (stopChan,
// sync.WaitGroup, one ticker per registered uploader).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/uploadop/uploadop/internal/collaborators"
	"github.com/uploadop/uploadop/internal/config"
	"github.com/uploadop/uploadop/internal/dirsize"
	"github.com/uploadop/uploadop/internal/ledger"
	"github.com/uploadop/uploadop/internal/logging"
	"github.com/uploadop/uploadop/internal/orchestrator"
)

// Runner is the subset of *orchestrator.Orchestrator the scheduler drives;
// an interface so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string) (orchestrator.RunResult, error)
}

// Scheduler owns one time.Ticker per registered uploader and fires
// scheduled_check(U) on each tick.
type Scheduler struct {
	cfg          *config.Config
	log          *logging.Logger
	run          Runner
	cleanup      collaborators.HiddenCleanup
	bans         *ledger.BanLedger
	identityBans *ledger.BanLedger

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New builds a Scheduler over the given config and collaborators. cleanup
// may be collaborators.NoopDownloadQueue{}'s sibling -- pass nil to skip the
// hidden-cleanup call entirely. identityBans may be nil to skip the expired
// identity-ban sweep (left to the identity rotator's own sweep in that case).
func New(cfg *config.Config, log *logging.Logger, run Runner, cleanup collaborators.HiddenCleanup, uploaderBans, identityBans *ledger.BanLedger) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		log:          log,
		run:          run,
		cleanup:      cleanup,
		bans:         uploaderBans,
		identityBans: identityBans,
		stopChan:     make(chan struct{}),
	}
}

// Start launches one ticker goroutine per uploader and blocks until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for name, uCfg := range s.cfg.Uploader {
		s.wg.Add(1)
		go s.tickerLoop(ctx, name, uCfg)
	}

	s.wg.Wait()
}

// Stop signals every ticker loop to exit and returns without waiting; Start
// returns once they have finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	close(s.stopChan)
}

func (s *Scheduler) tickerLoop(ctx context.Context, name string, uCfg config.Uploader) {
	defer s.wg.Done()

	interval := time.Duration(uCfg.CheckIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.scheduledCheck(ctx, name, uCfg)
		}
	}
}

// scheduledCheck runs one scheduled check: skip while the uploader is
// suspended, clear expired identity bans, skip while the folder is below
// max_size_gb or outside the schedule window, then run hidden cleanup and
// the orchestrator.
func (s *Scheduler) scheduledCheck(ctx context.Context, name string, uCfg config.Uploader) {
	log := s.log.WithUploader(name)

	if banned, until := s.bans.IsBanned(name, time.Now()); banned {
		log.Debug().Time("until", until).Msg("uploader still suspended, skipping scheduled check")
		return
	}
	s.bans.Unban(name)

	if s.identityBans != nil {
		if cleared := s.identityBans.ClearExpired(time.Now()); len(cleared) > 0 {
			log.Debug().Strs("keys", cleared).Msg("cleared expired identity bans")
		}
	}

	remote := s.cfg.Remotes[name]

	sizeBytes, err := dirsize.Measure(remote.UploadFolder, uCfg.SizeExcludes)
	if err != nil {
		log.Warn().Err(err).Msg("folder size measurement failed, skipping this check")
		return
	}
	sizeGB := dirsize.GiB(sizeBytes)

	if sizeGB < uCfg.MaxSizeGB {
		log.Debug().Float64("size_gb", sizeGB).Float64("threshold_gb", uCfg.MaxSizeGB).Msg("below size threshold, skipping")
		return
	}

	if !withinSchedule(uCfg.Schedule, time.Now()) {
		log.Debug().Msg("outside configured schedule window, skipping")
		return
	}

	if s.cleanup != nil {
		if err := s.cleanup.Clean(ctx, remote.UploadRemote, remote.UploadFolder); err != nil {
			log.Warn().Err(err).Msg("hidden-files cleanup failed, continuing with upload anyway")
		}
	}

	log.Info().Float64("size_gb", sizeGB).Msg("threshold reached, invoking orchestrator")
	result, err := s.run.Run(ctx, name)
	if err != nil {
		log.Error().Err(err).Msg("orchestrator run failed")
		return
	}
	log.Info().Int("transfer_count", result.TransferCount).Uint64("bytes_charged", result.BytesCharged).Msg("orchestrator run complete")
}

// withinSchedule reports whether now falls inside sched's allowed_from/
// allowed_until window (HH:MM, 24h clock). A nil or disabled schedule always
// allows. A window that wraps midnight (from > until) is treated as
// spanning the two halves of the day either side of midnight.
func withinSchedule(sched *config.Schedule, now time.Time) bool {
	if sched == nil || !sched.Enabled {
		return true
	}

	from, err := time.Parse("15:04", sched.AllowedFrom)
	if err != nil {
		return true
	}
	until, err := time.Parse("15:04", sched.AllowedUntil)
	if err != nil {
		return true
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	fromMinutes := from.Hour()*60 + from.Minute()
	untilMinutes := until.Hour()*60 + until.Minute()

	if fromMinutes <= untilMinutes {
		return nowMinutes >= fromMinutes && nowMinutes <= untilMinutes
	}
	return nowMinutes >= fromMinutes || nowMinutes <= untilMinutes
}
