package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/executor"
	"sdnguard/internal/shell"
	"sdnguard/internal/topology"
	"sdnguard/internal/tui"
)

var executorCmd = &cobra.Command{
	Use:   "executor",
	Short: "Drain the command queue against the emulated network.",
	Long: "`executor` polls queue.path, runs every batch it finds against the " +
		"local namespaces and Open vSwitch, and removes the file. Unless " +
		"--no-console is given it also opens a prompt for ad-hoc lines.",
	RunE: runExecutor,
}

func init() {
	executorCmd.Flags().Bool("no-console", false, "run headless")
	executorCmd.Flags().String("queue", "", "queue file (overrides queue.path)")
	rootCmd.AddCommand(executorCmd)
}

func runExecutor(cmd *cobra.Command, _ []string) (err error) {
	headless, _ := cmd.Flags().GetBool("no-console")

	rt, err := setup(!headless)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rt.Close()) }()
	cfg, obs := rt.cfg, rt.obs

	if v, _ := cmd.Flags().GetString("queue"); v != "" {
		cfg.Queue.Path = v
	}
	if cfg.Queue.Transport == "memory" {
		return errors.New("queue.transport is memory: the controller runs its own executor")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := rt.openAudit(ctx)
	if err != nil {
		return err
	}

	topo, err := topology.New(cfg.Topology)
	if err != nil {
		return err
	}
	// The mode only matters to producers; Drain reads either layout.
	queue := cmdqueue.NewFileQueue(cfg.Queue.Path, cmdqueue.ModeAtomic)
	env := executor.NewNetlinkEnvironment(envConfig(rt), topo, shell.NewExec(cfg.Executor.CommandTimeout, obs), obs)

	opts := []executor.Option{
		executor.WithInterval(cfg.Executor.PollInterval),
		executor.WithHistory(cfg.Executor.History),
	}
	if store != nil {
		opts = append(opts, executor.WithRecorder(store))
	}
	exec := executor.New(queue, env, obs, opts...)

	if headless {
		return exec.Run(ctx)
	}

	done := make(chan error, 1)
	go func() { done <- exec.Run(ctx) }()

	if _, err := tea.NewProgram(tui.NewConsoleModel(ctx, exec, queue.Path()), tea.WithAltScreen()).Run(); err != nil {
		stop()
		<-done
		return fmt.Errorf("console: %w", err)
	}
	stop()
	return <-done
}
