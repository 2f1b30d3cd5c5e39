package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/uploadop/uploadop/internal/collaborators"
	"github.com/uploadop/uploadop/internal/config"
	"github.com/uploadop/uploadop/internal/ledger"
	"github.com/uploadop/uploadop/internal/logging"
	"github.com/uploadop/uploadop/internal/mediaserver"
	"github.com/uploadop/uploadop/internal/notify"
	"github.com/uploadop/uploadop/internal/openfiles"
	"github.com/uploadop/uploadop/internal/orchestrator"
	"github.com/uploadop/uploadop/internal/progress"
	"github.com/uploadop/uploadop/internal/rclone"
	"github.com/uploadop/uploadop/internal/transferlog"
)

// app bundles every ledger and collaborator the run/upload/status/quota
// commands share, built once from the loaded config.
type app struct {
	cfg          *config.Config
	log          *logging.Logger
	quota        *ledger.QuotaLedger
	identityBans *ledger.BanLedger
	uploaderBans *ledger.BanLedger
	transferred  *ledger.TransferredLedger
}

func loadApp(log *logging.Logger) (*app, error) {
	if err := requireConfigFlag(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	dir := cfg.Core.ConfigDir
	if dir == "" {
		dir = filepath.Dir(cfgFile)
	}

	quota, err := ledger.NewQuotaLedger(filepath.Join(dir, "quota.json"))
	if err != nil {
		return nil, fmt.Errorf("open quota ledger: %w", err)
	}
	identityBans, err := ledger.NewBanLedger(filepath.Join(dir, "identity_bans.json"))
	if err != nil {
		return nil, fmt.Errorf("open identity ban ledger: %w", err)
	}
	uploaderBans, err := ledger.NewBanLedger(filepath.Join(dir, "uploader_bans.json"))
	if err != nil {
		return nil, fmt.Errorf("open uploader ban ledger: %w", err)
	}
	transferred, err := ledger.NewTransferredLedger(filepath.Join(dir, "transferred.json"))
	if err != nil {
		return nil, fmt.Errorf("open transferred-set ledger: %w", err)
	}

	return &app{
		cfg:          cfg,
		log:          log,
		quota:        quota,
		identityBans: identityBans,
		uploaderBans: uploaderBans,
		transferred:  transferred,
	}, nil
}

// orchestratorFor builds the Orchestrator for one uploader, wiring in the RC
// client, stats poller, and throttle monitor's media client only when plex
// is enabled and plex.rclone.url configures an RC endpoint.
func (a *app) orchestratorFor(name string) *orchestrator.Orchestrator {
	deps := orchestrator.Deps{
		Config:        a.cfg,
		Log:           a.log,
		LockDir:       a.lockDir(),
		Quota:         a.quota,
		IdentityBans:  a.identityBans,
		UploaderBans:  a.uploaderBans,
		Transferred:   a.transferred,
		TransferLog:   a.transferLogFor(name),
		Notifier:      a.notifierFor(),
		OpenFiles:     openfiles.New(a.cfg.Core.LsofBinaryPath),
		DownloadQueue: collaborators.NoopDownloadQueue{},
		Dashboard:     collaborators.NoopDashboard{},
		Progress:      progress.NewCLIProgress(),
	}

	if a.cfg.Plex.Enabled && a.cfg.Plex.Rclone.URL != "" {
		rc := rclone.NewRC(a.cfg.Plex.Rclone.URL, a.log)
		deps.RC = rc
		deps.Stats = rclone.NewStatsPoller(rc)
		deps.Media = mediaserver.New(a.cfg.Plex.URL, a.cfg.Plex.Token, a.log)
	}

	return orchestrator.New(deps)
}

func (a *app) lockDir() string {
	if a.cfg.Core.ConfigDir != "" {
		return a.cfg.Core.ConfigDir
	}
	return filepath.Dir(cfgFile)
}

func (a *app) transferLogFor(name string) transferlog.Log {
	if a.cfg.Core.TransferLogPath == "" {
		return transferlog.NoopLog{}
	}
	return transferlog.NewFileLog(a.cfg.Core.TransferLogPath)
}

// notifierFor writes cycling/trigger notifications to stderr -- the
// original's Discord/Slack/Telegram senders are out of scope;
// only the notify.Notifier contract is.
func (a *app) notifierFor() notify.Notifier {
	return notify.NewWriterNotifier(os.Stderr)
}
