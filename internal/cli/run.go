package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uploadop/uploadop/internal/orchestrator"
	"github.com/uploadop/uploadop/internal/scheduler"
)

// newRunCmd builds "uploadop run", which starts the scheduler loop in the
// foreground.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler loop for every configured uploader",
		Long: `Starts one interval ticker per configured uploader: each tick checks
suspension state, clears expired bans, measures the source folder's size,
and -- once the size and schedule-window gates pass -- invokes the upload
orchestrator under an exclusive per-uploader lock.

Ctrl-C (or SIGTERM) cancels the in-flight run's context; the orchestrator
finishes releasing its lock and ledgers before the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			a, err := loadApp(log)
			if err != nil {
				return err
			}

			if len(a.cfg.Uploader) == 0 {
				return fmt.Errorf("no uploaders configured")
			}

			fmt.Printf("uploadop: starting scheduler for %d uploader(s)\n", len(a.cfg.Uploader))
			for name := range a.cfg.Uploader {
				fmt.Printf("  - %s\n", name)
			}

			s := scheduler.New(a.cfg, log, appRunner{app: a}, nil, a.uploaderBans, a.identityBans)
			s.Start(GetContext())
			return nil
		},
	}
	return cmd
}

// appRunner implements scheduler.Runner by resolving the named uploader's
// orchestrator on every call -- cheap, since Orchestrator is stateless aside
// from its Deps, and the scheduler never calls it concurrently for the same
// uploader (one ticker per name, one in-flight run per lock).
type appRunner struct {
	app *app
}

func (r appRunner) Run(ctx context.Context, name string) (orchestrator.RunResult, error) {
	return r.app.orchestratorFor(name).Run(ctx, name)
}
