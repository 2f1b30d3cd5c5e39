package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uploadop/uploadop/internal/ledger"
)

// newQuotaCmd builds the "quota" command group, an operator escape hatch for
// clearing a quota entry (and its matching ban) outside the normal 24h sweep.
func newQuotaCmd() *cobra.Command {
	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect or reset per-identity quota state",
	}
	quotaCmd.AddCommand(newQuotaResetCmd())
	return quotaCmd
}

func newQuotaResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <uploader> <identity>",
		Short: "Remove a quota entry and its matching identity ban immediately",
		Long: `Removes the (uploader, identity) quota entry outright and clears its
matching identity ban, forcing a fresh 24h window on the next stage instead
of waiting for the 24h sweep. Pass "" for identity when the
uploader has no service-account directory configured.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploader, identity := args[0], args[1]
			log := GetLogger()
			a, err := loadApp(log)
			if err != nil {
				return err
			}

			if _, ok := a.cfg.Uploader[uploader]; !ok {
				return fmt.Errorf("unknown uploader %q", uploader)
			}

			if err := a.quota.Remove(uploader, identity); err != nil {
				return fmt.Errorf("remove quota entry: %w", err)
			}
			if err := a.identityBans.Unban(ledger.IdentityBanKey(uploader, identity)); err != nil {
				return fmt.Errorf("clear identity ban: %w", err)
			}

			fmt.Printf("%s/%s: quota entry and identity ban cleared\n", uploader, identity)
			return nil
		},
	}
	return cmd
}
