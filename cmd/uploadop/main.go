// uploadop drives rclone uploads across a pool of service-account identities,
// rotating on daily quota exhaustion and provider-side rate-limit triggers,
// throttling against a media server's active stream count.
package main

import (
	"fmt"
	"os"

	"github.com/uploadop/uploadop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
