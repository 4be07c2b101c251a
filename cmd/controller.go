package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sdnguard/internal/cmdqueue"
	"sdnguard/internal/controller"
	"sdnguard/internal/executor"
	"sdnguard/internal/observability"
	"sdnguard/internal/probe"
	"sdnguard/internal/reporting"
	"sdnguard/internal/shell"
	"sdnguard/internal/southbound"
	"sdnguard/internal/tui"
)

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run the learning switch and DoS monitor.",
	Long: "`controller` reads PacketIn events from a pcap file (--pcap) or a live " +
		"interface, serves /status and /metrics, and enqueues the migration plan " +
		"the first time a destination crosses the threshold.",
	RunE: runController,
}

func init() {
	controllerCmd.Flags().String("pcap", "", "replay this capture instead of southbound.pcap")
	controllerCmd.Flags().String("iface", "", "capture live from this interface (southbound.source=capture)")
	controllerCmd.Flags().Bool("tui", false, "show the dashboard")
	controllerCmd.Flags().String("report", "", "write an HTML incident report into this directory on exit")
	rootCmd.AddCommand(controllerCmd)
}

func runController(cmd *cobra.Command, _ []string) (err error) {
	useTUI, _ := cmd.Flags().GetBool("tui")
	reportDir, _ := cmd.Flags().GetString("report")

	rt, err := setup(useTUI)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, rt.Close()) }()
	cfg, obs := rt.cfg, rt.obs

	if v, _ := cmd.Flags().GetString("pcap"); v != "" {
		cfg.Southbound.Source, cfg.Southbound.Pcap = "replay", v
	}
	if v, _ := cmd.Flags().GetString("iface"); v != "" {
		cfg.Southbound.Source, cfg.Southbound.Interface = "capture", v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := rt.openAudit(ctx)
	if err != nil {
		return err
	}

	runner := shell.NewExec(cfg.Probe.Timeout, obs)
	prober := probe.NewOVSProbe(runner, cfg.Probe.VSCtl, obs)

	var (
		queue cmdqueue.Producer
		opts  []controller.Option
	)
	if store != nil {
		opts = append(opts, controller.WithRecorder(store))
	}

	var mem *cmdqueue.ChanQueue
	switch cfg.Queue.Transport {
	case "memory":
		mem = cmdqueue.NewChanQueue(1)
		queue = mem
	default:
		mode, err := cmdqueue.ParseMode(cfg.Queue.Mode)
		if err != nil {
			return err
		}
		queue = cmdqueue.NewFileQueue(cfg.Queue.Path, mode)
	}

	ctrl, err := controller.New(cfg, obs, queue, prober, opts...)
	if err != nil {
		return err
	}

	if mem != nil {
		// Single process: the executor drains the same in-memory queue and
		// shares the controller's view of the topology.
		env := executor.NewNetlinkEnvironment(envConfig(rt), ctrl.Topology(),
			shell.NewExec(cfg.Executor.CommandTimeout, obs), obs)
		execOpts := []executor.Option{
			executor.WithInterval(cfg.Executor.PollInterval),
			executor.WithHistory(cfg.Executor.History),
		}
		if store != nil {
			execOpts = append(execOpts, executor.WithRecorder(store))
		}
		go func() { _ = executor.New(mem, env, obs, execOpts...).Run(ctx) }()
	}

	return serveController(ctx, rt, ctrl, useTUI, reportDir)
}

func serveController(ctx context.Context, rt *runtime, ctrl *controller.Controller, useTUI bool, reportDir string) error {
	cfg, obs := rt.cfg, rt.obs
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan southbound.Event, 1024)
	sourceErr := make(chan error, 1)
	closeSource, err := startSource(ctx, rt, events, sourceErr)
	if err != nil {
		return err
	}
	defer closeSource()

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- controller.ListenAndServe(ctx, cfg.Metrics.Addr, ctrl.Router(rt.reg), obs)
	}()

	dispatchErr := make(chan error, 1)
	go func() { dispatchErr <- ctrl.Run(ctx, events) }()

	var errs []error
	if useTUI {
		model := tui.NewDashboardModel(ctrl, fmt.Sprintf("dpid %d", cfg.Southbound.DatapathID),
			cfg.Migration.Host, cfg.Detection.Threshold, cfg.Detection.Window)
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			errs = append(errs, fmt.Errorf("dashboard: %w", err))
		}
		cancel()
	}

	select {
	case err := <-dispatchErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	case err := <-apiErr:
		errs = append(errs, err)
	}
	cancel()

	select {
	case err := <-sourceErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("southbound: %w", err))
		}
	default:
	}

	if reportDir != "" {
		st := ctrl.Status()
		path, err := reporting.GenerateIncidentReport(reportDir, reporting.Incident{
			Record: st.Migration,
			Stats:  ctrl.Stats(),
			Alerts: st.Alerts,
		}, "html")
		if err != nil {
			errs = append(errs, fmt.Errorf("report: %w", err))
		} else {
			obs.LogInfo("report_written", observability.F("path", path))
		}
	}

	obs.LogInfo("controller_stopped", observability.F("latch", ctrl.Status().Latch))
	return errors.Join(errs...)
}

// startSource starts the configured southbound source feeding events. The
// replay source closes events once the capture is exhausted.
func startSource(ctx context.Context, rt *runtime, events chan<- southbound.Event, errCh chan<- error) (func(), error) {
	sb := rt.cfg.Southbound

	switch sb.Source {
	case "capture":
		src, err := southbound.OpenCapture(sb.Interface, sb.DatapathID, sb.InPort, sb.Filter)
		if err != nil {
			return nil, err
		}
		src.Inject = sb.Inject
		go func() { errCh <- src.Run(ctx, events) }()
		return src.Close, nil

	default:
		if sb.Pcap == "" {
			return nil, errors.New("replay needs a capture file: set southbound.pcap or pass --pcap")
		}
		in, err := os.Open(sb.Pcap)
		if err != nil {
			return nil, err
		}
		closers := []func() error{in.Close}
		closeAll := func() {
			for _, c := range closers {
				_ = c()
			}
		}

		var record io.Writer
		if sb.Record != "" {
			f, err := os.Create(sb.Record)
			if err != nil {
				closeAll()
				return nil, err
			}
			closers = append(closers, f.Close)
			record = f
		}
		dp, err := southbound.NewRecordingDatapath(sb.DatapathID, record)
		if err != nil {
			closeAll()
			return nil, err
		}

		src := southbound.NewReplaySource(in, dp, sb.InPort)
		src.Paced = sb.Paced
		go func() {
			err := src.Run(ctx, events)
			close(events)
			errCh <- err
		}()
		return closeAll, nil
	}
}

func envConfig(rt *runtime) executor.EnvConfig {
	return executor.EnvConfig{
		VSCtl:       rt.cfg.Probe.VSCtl,
		OFCtl:       rt.cfg.Executor.OFCtl,
		Shell:       rt.cfg.Executor.Shell,
		NetnsPrefix: rt.cfg.Executor.NetnsPrefix,
	}
}
