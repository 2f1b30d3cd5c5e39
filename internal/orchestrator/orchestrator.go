// Package orchestrator drives one uploader's run through its state machine:
// Idle -> Locked -> PreparingIdentities -> Staging ->
// Draining -> Finishing -> Idle. It composes the lock, identity rotator,
// stage planner, transfer-tool driver, throttle monitor, and transferred-set
// ledger into the single end-to-end upload operation.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/uploadop/uploadop/internal/collaborators"
	"github.com/uploadop/uploadop/internal/config"
	"github.com/uploadop/uploadop/internal/dirsize"
	"github.com/uploadop/uploadop/internal/identity"
	"github.com/uploadop/uploadop/internal/ledger"
	"github.com/uploadop/uploadop/internal/lock"
	"github.com/uploadop/uploadop/internal/logging"
	"github.com/uploadop/uploadop/internal/notify"
	"github.com/uploadop/uploadop/internal/openfiles"
	"github.com/uploadop/uploadop/internal/progress"
	"github.com/uploadop/uploadop/internal/rclone"
	"github.com/uploadop/uploadop/internal/stageplan"
	"github.com/uploadop/uploadop/internal/throttle"
	"github.com/uploadop/uploadop/internal/transferlog"
)

// State names the FSM positions an uploader run passes through.
type State string

const (
	Idle                State = "idle"
	Locked              State = "locked"
	PreparingIdentities State = "preparing_identities"
	Staging             State = "staging"
	Draining            State = "draining"
	Finishing           State = "finishing"
)

// OpenFileLister reports which source-relative paths are currently held open
// by another process, so the orchestrator can exclude them from the transfer.
type OpenFileLister interface {
	OpenFiles(ctx context.Context, root string) ([]string, error)
}

// NoopOpenFileLister reports no open files; used when exclude_open_files is
// false or no lister is wired for the platform.
type NoopOpenFileLister struct{}

func (NoopOpenFileLister) OpenFiles(ctx context.Context, root string) ([]string, error) {
	return nil, nil
}

// Deps bundles the collaborators one Orchestrator needs, shared across every
// uploader it runs.
type Deps struct {
	Config        *config.Config
	Log           *logging.Logger
	LockDir       string
	Quota         *ledger.QuotaLedger
	IdentityBans  *ledger.BanLedger
	UploaderBans  *ledger.BanLedger
	Transferred   *ledger.TransferredLedger
	TransferLog   transferlog.Log
	Notifier      notify.Notifier
	OpenFiles     OpenFileLister
	DownloadQueue collaborators.DownloadQueue
	Dashboard     collaborators.Dashboard
	RC            *rclone.RC // nil unless plex is enabled with an rclone RC url
	Stats         *rclone.StatsPoller // nil unless plex is enabled with an rclone RC url
	Media         throttle.MediaClient
	Progress      progress.Reporter // defaults to a no-op when nil
}

// Orchestrator runs one uploader's upload operation end to end.
type Orchestrator struct {
	deps Deps
}

// New builds an Orchestrator over the shared dependency bundle.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// RunResult reports what happened in one uploader run.
type RunResult struct {
	State         State
	Success       bool
	TransferCount int
	BytesCharged  uint64
	Suspended     bool
}

// Run executes the full FSM for uploader name once. It
// acquires the upload lock, rotates through identities staging transfers
// until quota or the tool is exhausted, writes back the transferred set, and
// releases every resource on the way out -- including on ctx cancellation.
func (o *Orchestrator) Run(ctx context.Context, name string) (RunResult, error) {
	uCfg, ok := o.deps.Config.Uploader[name]
	if !ok {
		return RunResult{}, fmt.Errorf("unknown uploader %q", name)
	}
	remote := o.deps.Config.Remotes[name]
	log := o.deps.Log.WithUploader(name)

	if banned, until := o.deps.UploaderBans.IsBanned(name, time.Now()); banned {
		log.Info().Time("until", until).Msg("uploader suspended, skipping run")
		return RunResult{State: Idle, Suspended: true}, nil
	}

	lockPath := filepath.Join(o.deps.LockDir, "upload-"+name+".lock")
	heldLock, err := lock.Acquire(ctx, lockPath, log)
	if err != nil {
		return RunResult{State: Idle}, fmt.Errorf("acquire lock: %w", err)
	}
	state := Locked
	defer func() {
		if err := heldLock.Release(); err != nil {
			log.Warn().Err(err).Msg("release lock failed")
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.deps.DownloadQueue != nil {
		if err := o.deps.DownloadQueue.Pause(runCtx); err != nil {
			log.Warn().Err(err).Msg("pause download queue failed, continuing")
		}
	}

	var monitorDone chan struct{}
	if uCfg.CanBeThrottled() && o.deps.Config.Plex.Enabled && o.deps.RC != nil && o.deps.Media != nil {
		monitorDone = o.startThrottleMonitor(runCtx, name, log)
	}
	if o.deps.Stats != nil {
		go o.deps.Stats.Run(runCtx)
	}

	state = PreparingIdentities
	result, runErr := o.runStaging(runCtx, name, uCfg, remote, log, &state)

	cancel()
	if monitorDone != nil {
		<-monitorDone
	}

	state = Finishing
	if o.deps.DownloadQueue != nil {
		if err := o.deps.DownloadQueue.Resume(context.Background()); err != nil {
			log.Warn().Err(err).Msg("resume download queue failed")
		}
	}
	if o.deps.Dashboard != nil {
		_ = o.deps.Dashboard.PublishRunStatus(context.Background(), name, string(state))
	}

	result.State = Idle
	return result, runErr
}

func (o *Orchestrator) startThrottleMonitor(ctx context.Context, name string, log *logging.Logger) chan struct{} {
	done := make(chan struct{})
	cfg := throttle.Config{
		PollInterval:             time.Duration(o.deps.Config.Plex.PollIntervalSeconds) * time.Second,
		MaxStreamsBeforeThrottle: o.deps.Config.Plex.MaxStreamsBeforeThrottle,
		IgnoreLocalStreams:       o.deps.Config.Plex.IgnoreLocalStreams,
		ThrottleSpeeds:           o.deps.Config.Plex.Rclone.ThrottleSpeeds,
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}

	notifyFn := func(string) {}
	if o.deps.Config.Plex.Notifications && o.deps.Notifier != nil {
		n := o.deps.Notifier
		notifyFn = func(msg string) { _ = n.Send(name + ": " + msg) }
	}

	monitor := throttle.NewMonitor(o.deps.Media, o.deps.RC, cfg, log, notifyFn)
	go func() {
		defer close(done)
		monitor.Run(ctx)
	}()
	return done
}

// runStaging prepares identities, drains the stage loop for each in turn
// until the rotator reports none usable, and writes back the transferred set.
func (o *Orchestrator) runStaging(ctx context.Context, name string, uCfg config.Uploader, remote config.Remote, log *logging.Logger, state *State) (RunResult, error) {
	identities, err := o.identitiesFor(uCfg)
	if err != nil {
		return RunResult{}, fmt.Errorf("list identities: %w", err)
	}

	accountant := identity.NewAccountant(o.deps.Quota)
	rotator := identity.NewRotator(name, identities, o.deps.IdentityBans, o.deps.UploaderBans, accountant)

	chunked := uCfg.ChunkedUpload != nil && uCfg.ChunkedUpload.Enabled
	fingerprint := configFingerprint(remote)

	excludes, transferredFiles := o.buildExcludes(ctx, name, uCfg, remote, fingerprint, log)

	var chunkFiles []string
	chunkDir := ""
	if chunked {
		chunkFiles, chunkDir, err = o.generateChunks(ctx, name, uCfg, remote, excludes, log)
		if err != nil {
			log.Warn().Err(err).Msg("chunked file-list generation failed, falling back to whole-folder mode")
			chunked = false
			chunkFiles = nil
		}
	}
	if chunkDir != "" {
		defer os.RemoveAll(chunkDir)
	}

	result := RunResult{}
	newlyTransferred := make([]string, 0, ledger.FlushThreshold)
	*state = Staging

	reporter := o.deps.Progress
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}
	if total, sizeErr := dirsize.Measure(remote.UploadFolder, uCfg.SizeExcludes); sizeErr == nil {
		reporter.Start(int64(total), name)
	} else {
		reporter.Start(0, name)
	}
	defer reporter.Finish()

	triggerDefs := buildTriggerDefs(remote)

	identityLoop := func(id string) error {
		tracker := rclone.NewTracker(triggerDefs)
		driver := rclone.NewDriver(o.deps.Config.Core.RcloneBinaryPath, tracker, log)

		remaining, err := accountant.Remaining(name, id, time.Now())
		if err != nil {
			return err
		}

		chunkIdx := 0
		for remaining > identity.StageFloor {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			plan := stageplan.Plan(remaining, ledger.DailyQuota, chunked)

			var chunkFile string
			if chunked {
				if chunkIdx >= len(chunkFiles) {
					// Every chunk was handed to the tool without hitting a
					// transfer cap: the source is fully uploaded.
					return errRunComplete
				}
				chunkFile = chunkFiles[chunkIdx]
				chunkIdx++
			}

			argv := rclone.BuildCopyArgv(rclone.CopyArgs{
				Move:               uCfg.Move(),
				Source:             remote.UploadFolder,
				Destination:        remote.UploadRemote,
				ConfigPath:         o.deps.Config.Core.RcloneConfigPath,
				ServiceAccountFile: id,
				Params:             plan,
				ChunkFile:          chunkFile,
				Excludes:           excludes,
				Extras:             remote.RcloneExtras,
			})

			if o.deps.Config.Core.DryRun {
				log.Info().Strs("argv", argv).Msg("dry run: skipping tool invocation")
				break
			}

			outcome := driver.Run(ctx, argv)

			var charged uint64
			for _, rel := range outcome.Completed {
				size, avgSpeed := o.chargeableSize(rel, remote)
				charged += size
				result.TransferCount++
				newlyTransferred = append(newlyTransferred, rel)
				o.writeTransferLogEntry(name, rel, size, avgSpeed)
			}
			if charged > 0 {
				if err := accountant.Charge(name, id, charged, time.Now()); err != nil {
					log.Warn().Err(err).Msg("charge quota failed")
				}
				result.BytesCharged += charged
				reporter.Update(int64(result.BytesCharged))
			}

			if len(newlyTransferred) >= ledger.FlushThreshold {
				if err := o.deps.Transferred.MergeIncremental(name, fingerprint, newlyTransferred); err != nil {
					log.Warn().Err(err).Msg("mid-run transferred-set flush failed")
				} else {
					newlyTransferred = newlyTransferred[:0]
				}
			}

			switch outcome.ExitCode {
			case rclone.Ok:
				// The tool finished without hitting a transfer cap: every
				// file the source had to offer is now on the remote, so
				// the whole run is done, not just this identity's stage.
				return errRunComplete
			case rclone.MaxTransferReached:
				remaining, err = accountant.Remaining(name, id, time.Now())
				if err != nil {
					return err
				}
				continue
			case rclone.AbortedByTrigger:
				if err := rotator.RecordTriggerAbort(id, outcome.TriggerAbort.SleepHours, time.Now()); err != nil {
					return err
				}
				if o.deps.Notifier != nil {
					_ = o.deps.Notifier.Send(fmt.Sprintf("%s: cycling identity after trigger %q (%d files, %d bytes so far)",
						name, outcome.TriggerAbort.Phrase, result.TransferCount, result.BytesCharged))
				}
				return errTriggerAbort
			default:
				return fmt.Errorf("transfer tool error: %w", outcome.Err)
			}
		}
		return nil
	}

	for {
		next, err := rotator.NextUsable(time.Now())
		if err != nil {
			rotateErr := fmt.Errorf("rotate identity: %w", err)
			reporter.Error(rotateErr)
			return result, rotateErr
		}
		if !next.Found {
			break
		}

		err = identityLoop(next.Identity)
		if err == errRunComplete {
			break
		}
		if err != nil && err != errTriggerAbort {
			if ctx.Err() != nil {
				break
			}
			reporter.Error(err)
			return result, err
		}
	}

	*state = Draining
	if err := o.drainTransferredSet(name, fingerprint, transferredFiles, newlyTransferred); err != nil {
		log.Warn().Err(err).Msg("transferred-set write-back failed")
	}

	if !o.deps.Config.Core.DryRun {
		removeEmptyDirs(remote.UploadFolder, remote.RemoveEmptyDirDepth)
	}

	result.Success = ctx.Err() == nil
	return result, nil
}

var errTriggerAbort = fmt.Errorf("aborted by trigger, identity rotated")

// errRunComplete signals that the tool exited 0 -- the source is fully
// uploaded -- so the whole run is finished, not just the current identity's
// stage.
var errRunComplete = fmt.Errorf("run complete")

func (o *Orchestrator) identitiesFor(uCfg config.Uploader) ([]string, error) {
	if uCfg.ServiceAccountPath == "" {
		return []string{""}, nil
	}
	return identity.List(uCfg.ServiceAccountPath)
}

// buildExcludes composes the argv exclude list for this run: configured
// rclone_excludes, currently-open files (if enabled), and -- on a non full
// scan day -- the cached transferred set, so already-uploaded files are
// skipped without a remote listing.
func (o *Orchestrator) buildExcludes(ctx context.Context, name string, uCfg config.Uploader, remote config.Remote, fingerprint string, log *logging.Logger) ([]string, map[string]bool) {
	excludes := append([]string{}, remote.RcloneExcludes...)

	if uCfg.ExcludeOpenFiles && o.deps.OpenFiles != nil {
		open, err := o.deps.OpenFiles.OpenFiles(ctx, remote.UploadFolder)
		if err != nil {
			log.Warn().Err(err).Msg("open-file listing failed, continuing without it")
		}
		excludes = append(excludes, openfiles.FilterExcludes(open, uCfg.OpenedExcludes)...)
	}

	files, fresh := o.deps.Transferred.Files(name, fingerprint)
	if !fresh {
		log.Warn().Msg("transferred-set fingerprint mismatch, ignoring cached excludes this run")
		files = map[string]bool{}
	}

	if ledger.IsFullScanDay(time.Now()) {
		// Excludes aren't built from the cached set on a full-scan day -- the
		// run re-lists the remote from scratch -- but the cached set itself
		// is still needed below to union forward into the new ledger entry.
		return excludes, files
	}

	for rel := range files {
		excludes = append(excludes, rel)
	}
	return excludes, files
}

// drainTransferredSet performs the full-merge (weekend) or incremental-merge
// (weekday) write-back.
func (o *Orchestrator) drainTransferredSet(name, fingerprint string, cached map[string]bool, newlyTransferred []string) error {
	if ledger.IsFullScanDay(time.Now()) {
		merged := map[string]bool{}
		for f := range cached {
			merged[f] = true
		}
		// Completions already flushed mid-run live only in the stored set.
		if stored, fresh := o.deps.Transferred.Files(name, fingerprint); fresh {
			for f := range stored {
				merged[f] = true
			}
		}
		for _, f := range newlyTransferred {
			merged[f] = true
		}
		return o.deps.Transferred.ReplaceAll(name, fingerprint, merged, time.Now())
	}
	if len(newlyTransferred) == 0 {
		return nil
	}
	return o.deps.Transferred.MergeIncremental(name, fingerprint, newlyTransferred)
}

// chargeableSize resolves a completed transfer's byte size from the RC stats
// side channel, falling back to a local stat of the source path when the RC
// endpoint or stats poller is unavailable.
func (o *Orchestrator) chargeableSize(rel string, remote config.Remote) (uint64, float64) {
	if o.deps.Stats != nil {
		if stat, found := o.deps.Stats.FindFile(rel); found && stat.Size > 0 {
			return uint64(stat.Size), stat.SpeedAvg
		}
	}
	if info, err := os.Stat(filepath.Join(remote.UploadFolder, rel)); err == nil {
		return uint64(info.Size()), 0
	}
	return 0, 0
}

func (o *Orchestrator) writeTransferLogEntry(uploader, rel string, size uint64, avgSpeed float64) {
	if o.deps.TransferLog == nil {
		return
	}
	entry := transferlog.NewEntry(uploader, rel, time.Now())
	entry = transferlog.EnrichFromTransferStat(entry, int64(size), avgSpeed, "", "")
	if err := o.deps.TransferLog.Write(entry); err != nil {
		o.deps.Log.Warn().Err(err).Msg("transfer log write failed")
	}
}

// generateChunks lists the source folder (respecting excludes) and splits
// the result into fixed-size chunk files under a temp directory. File-list
// generation in chunked mode is bounded by a configurable timeout.
func (o *Orchestrator) generateChunks(ctx context.Context, name string, uCfg config.Uploader, remote config.Remote, excludes []string, log *logging.Logger) ([]string, string, error) {
	timeout := 600 * time.Second
	if uCfg.ChunkedUpload.GenerateListTimeoutS > 0 {
		timeout = time.Duration(uCfg.ChunkedUpload.GenerateListTimeoutS) * time.Second
	}

	listCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := rclone.BuildListArgv(rclone.ListArgs{
		Source:     remote.UploadFolder,
		ConfigPath: o.deps.Config.Core.RcloneConfigPath,
		Excludes:   excludes,
	})

	// lsf prints the listing on stdout, one path per line.
	out, runErr := exec.CommandContext(listCtx, o.deps.Config.Core.RcloneBinaryPath, argv...).Output()
	outcome := rclone.Outcome{Completed: strings.FieldsFunc(string(out), func(r rune) bool { return r == '\n' })}
	if listCtx.Err() != nil {
		return nil, "", fmt.Errorf("file-list generation timed out after %s", timeout)
	}
	if runErr != nil {
		return nil, "", fmt.Errorf("file-list generation failed: %w", runErr)
	}

	chunkSize := uCfg.ChunkedUpload.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	dir, err := os.MkdirTemp("", "uploadop-chunks-"+name+"-")
	if err != nil {
		return nil, "", err
	}

	var files []string
	for start := 0; start < len(outcome.Completed); start += chunkSize {
		end := start + chunkSize
		if end > len(outcome.Completed) {
			end = len(outcome.Completed)
		}
		path := filepath.Join(dir, fmt.Sprintf("chunk-%04d.txt", start/chunkSize))
		if err := os.WriteFile(path, []byte(strings.Join(outcome.Completed[start:end], "\n")+"\n"), 0o600); err != nil {
			return nil, dir, err
		}
		files = append(files, path)
	}
	return files, dir, nil
}

// buildTriggerDefs converts the configured sleep triggers into driver-facing
// definitions.
func buildTriggerDefs(remote config.Remote) []rclone.TriggerDef {
	phrases := make([]string, 0, len(remote.RcloneSleeps))
	for phrase := range remote.RcloneSleeps {
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)

	defs := make([]rclone.TriggerDef, 0, len(phrases))
	for _, phrase := range phrases {
		s := remote.RcloneSleeps[phrase]
		defs = append(defs, rclone.TriggerDef{
			Phrase:     phrase,
			Window:     time.Duration(s.Timeout) * time.Second,
			Count:      s.Count,
			SleepHours: float64(s.Sleep) / 3600,
		})
	}
	return defs
}

// configFingerprint hashes the fields that, if changed, invalidate a cached
// transferred set.
func configFingerprint(remote config.Remote) string {
	h := sha256.New()
	h.Write([]byte(remote.UploadFolder))
	h.Write([]byte{0})
	h.Write([]byte(remote.UploadRemote))
	return hex.EncodeToString(h.Sum(nil))
}

// removeEmptyDirs removes empty directories under root up to maxDepth levels
// deep, left behind once their contents have all been moved. depth <= 0 disables the cleanup.
func removeEmptyDirs(root string, maxDepth int) {
	if maxDepth <= 0 {
		return
	}
	removeEmptyDirsRec(root, 0, maxDepth)
}

func removeEmptyDirsRec(dir string, depth, maxDepth int) bool {
	if depth >= maxDepth {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	empty := true
	for _, e := range entries {
		if e.IsDir() {
			if removeEmptyDirsRec(filepath.Join(dir, e.Name()), depth+1, maxDepth) {
				continue
			}
			empty = false
		} else {
			empty = false
		}
	}

	if empty && depth > 0 {
		_ = os.Remove(dir)
		return true
	}
	return false
}
