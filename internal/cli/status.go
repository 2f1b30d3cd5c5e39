package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/uploadop/uploadop/internal/ledger"
)

// newStatusCmd builds "uploadop status", a read-only snapshot of ban/quota
// state per uploader and identity.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print current ban/quota ledger state per uploader and identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			a, err := loadApp(log)
			if err != nil {
				return err
			}

			now := time.Now()
			uploaderBans := a.uploaderBans.Snapshot()
			identityBans := a.identityBans.Snapshot()
			quotas := a.quota.Snapshot()

			for name := range a.cfg.Uploader {
				fmt.Printf("%s:\n", name)
				if until, ok := uploaderBans[name]; ok && now.Before(until) {
					fmt.Printf("  suspended until %s\n", until.Format(time.RFC3339))
				} else {
					fmt.Println("  not suspended")
				}

				found := false
				for key, entry := range quotas {
					uploader, identity := ledger.SplitKey(key)
					if uploader != name {
						continue
					}
					found = true
					remaining := uint64(0)
					if entry.Bytes < ledger.DailyQuota {
						remaining = ledger.DailyQuota - entry.Bytes
					}
					label := identity
					if label == "" {
						label = "(default)"
					}
					line := fmt.Sprintf("  identity %s: used=%d remaining=%d reset_at=%s",
						label, entry.Bytes, remaining, entry.ResetAt.Format(time.RFC3339))
					if until, ok := identityBans[key]; ok && now.Before(until) {
						line += fmt.Sprintf(" banned_until=%s", until.Format(time.RFC3339))
					}
					fmt.Println(line)
				}
				if !found {
					fmt.Println("  no quota usage recorded yet")
				}
			}
			return nil
		},
	}
	return cmd
}
