// Command pbtail follows realtime record changes from the terminal.
//
//	pbtail login ada@example.com --password secret
//	pbtail watch posts posts/abc123def456ghi
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagURL     string
	flagSession string
)

var rootCmd = &cobra.Command{
	Use:          "pbtail",
	Short:        "Tail realtime record events",
	Long:         "pbtail subscribes to realtime topics of a backend and prints every event as a JSON line.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./pbtail.yml)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "backend base URL, overrides client.base_url")
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "session file (default <user config dir>/pbtail/session.toml)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
