// Package cmd provides the command-line interface for sdnguard.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFiles   []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sdnguard",
	Short: "Learning-switch controller that moves a host away from a flood.",
	Long: `sdnguard runs a learning switch, counts packets per destination ` +
		`over fixed windows and, the first time a destination crosses the ` +
		`threshold, migrates the protected host to another switch through a ` +
		`command queue consumed by the executor.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading SDNGUARD_* overrides")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
