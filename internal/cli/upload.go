package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newUploadCmd builds "uploadop upload <uploader>", a one-shot run bypassing
// the scheduler's size gate.
func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <uploader>",
		Short: "Run one orchestrator pass for a single uploader immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			log := GetLogger()
			a, err := loadApp(log)
			if err != nil {
				return err
			}

			if _, ok := a.cfg.Uploader[name]; !ok {
				return fmt.Errorf("unknown uploader %q", name)
			}

			result, err := a.orchestratorFor(name).Run(GetContext(), name)
			if err != nil {
				return fmt.Errorf("upload run failed: %w", err)
			}

			if result.Suspended {
				fmt.Printf("%s: suspended, run skipped\n", name)
				return nil
			}
			fmt.Printf("%s: success=%v transfer_count=%d bytes_charged=%d\n",
				name, result.Success, result.TransferCount, result.BytesCharged)
			return nil
		},
	}
	return cmd
}
