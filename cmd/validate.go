package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sdnguard/internal/config"
	"sdnguard/internal/topology"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and print the effective settings.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		topo, err := topology.New(cfg.Topology)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "detection   window=%s threshold=%d alerts=%d\n",
			cfg.Detection.Window, cfg.Detection.Threshold, cfg.Detection.MaxAlerts)
		fmt.Fprintf(out, "migration   %s %s -> %s settle=%s\n",
			cfg.Migration.Host, cfg.Migration.FromSwitch, cfg.Migration.ToSwitch, cfg.Migration.SettleDelay)
		fmt.Fprintf(out, "queue       %s %s (%s)\n", cfg.Queue.Transport, cfg.Queue.Path, cfg.Queue.Mode)
		fmt.Fprintf(out, "southbound  %s dpid=%d in_port=%d\n",
			cfg.Southbound.Source, cfg.Southbound.DatapathID, cfg.Southbound.InPort)
		fmt.Fprintf(out, "metrics     %s\n", cfg.Metrics.Addr)
		for _, l := range topo.Links() {
			fmt.Fprintf(out, "link        %-4s %-4s %s\n", l.A, l.B, l)
		}
		fmt.Fprintf(out, "next ports  %s\n", strings.Join([]string{
			topo.NextInterface(cfg.Migration.Host),
			topo.NextInterface(cfg.Migration.ToSwitch),
		}, " "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
