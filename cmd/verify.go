package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"sdnguard/internal/config"
	"sdnguard/internal/migration"
	"sdnguard/internal/models"
	"sdnguard/internal/observability"
	"sdnguard/internal/probe"
	"sdnguard/internal/shell"
	"sdnguard/internal/topology"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check once that the migrated host's port is on the target switch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		sw, _ := cmd.Flags().GetString("switch")
		port, _ := cmd.Flags().GetString("port")
		if sw == "" {
			sw = cfg.Migration.ToSwitch
		}
		if port == "" {
			// Same port the coordinator would expect after a migration.
			topo, err := topology.New(cfg.Topology)
			if err != nil {
				return err
			}
			plan, err := migration.BuildPlan(topo, migration.Target{
				Host:       cfg.Migration.Host,
				FromSwitch: cfg.Migration.FromSwitch,
				ToSwitch:   sw,
				NewPort:    cfg.Migration.NewPort,
			})
			if err != nil {
				return err
			}
			port = plan.To.Port
		}

		logger := observability.NewLogger(cmd.ErrOrStderr(), observability.ParseLevel(cfg.Log.Level))
		obs := observability.NewPromObs(prometheus.NewRegistry(), logger)
		p := probe.NewOVSProbe(shell.NewExec(cfg.Probe.Timeout, obs), cfg.Probe.VSCtl, obs)

		res := p.Check(cmd.Context(), sw, port)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s (%s)\n", res.Status, sw, port, res.Latency)
		if res.Status != models.MigrationVerified {
			return errors.New(res.Diagnostic())
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("switch", "", "switch to query (defaults to migration.to_switch)")
	verifyCmd.Flags().String("port", "", "port expected on the switch (defaults to the planned port)")
	rootCmd.AddCommand(verifyCmd)
}
