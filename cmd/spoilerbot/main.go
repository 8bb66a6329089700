// spoilerbot hides chat spoilers behind an animated placeholder.
//
// Usage:
//
//	spoilerbot run --config config.yaml
//	spoilerbot render --text "Snape kills Dumbledore" --out preview.gif
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spoilerbot",
		Short: "Chat bot that replaces spoilers with a hover-to-reveal GIF",
		Long: `spoilerbot watches Discord or Mattermost channels for spoiler tags.

  <topic>:spoiler:<text>       hides your own message
  <message id>:spoils:<topic>  hides someone else's message (needs permission)

The tagged message is deleted and re-posted as an animated GIF.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")

	root.AddCommand(runCmd())
	root.AddCommand(renderCmd())
	return root
}
