package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sdnguard/internal/config"
	"sdnguard/internal/controller"
	"sdnguard/internal/migration"
	"sdnguard/internal/topology"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the queue lines a migration would produce.",
	Long: "`plan` builds the migration plan from the configured topology without " +
		"touching the queue. --host, --from and --to override the configured target.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		target := controller.Target(cfg)
		if v, _ := cmd.Flags().GetString("host"); v != "" {
			target.Host = v
		}
		if v, _ := cmd.Flags().GetString("from"); v != "" {
			target.FromSwitch = v
		}
		if v, _ := cmd.Flags().GetString("to"); v != "" {
			target.ToSwitch = v
		}

		topo, err := topology.New(cfg.Topology)
		if err != nil {
			return err
		}
		plan, err := migration.BuildPlan(topo, target)
		if err != nil {
			return err
		}
		lines, err := plan.Lines()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s: %s/%s -> %s/%s\n", target.Host,
			plan.From.Switch, plan.From.Port, plan.To.Switch, plan.To.Port)
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().String("host", "", "host to move")
	planCmd.Flags().String("from", "", "switch the host is on")
	planCmd.Flags().String("to", "", "switch to move the host to")
	rootCmd.AddCommand(planCmd)
}
