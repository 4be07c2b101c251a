package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sdnguard/internal/topology"
)

type Config struct {
	Detection  DetectionConfig  `yaml:"detection"`
	Migration  MigrationConfig  `yaml:"migration"`
	Topology   topology.Spec    `yaml:"topology"`
	Queue      QueueConfig      `yaml:"queue"`
	Probe      ProbeConfig      `yaml:"probe"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Southbound SouthboundConfig `yaml:"southbound"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Audit      AuditConfig      `yaml:"audit"`
	Log        LogConfig        `yaml:"log"`
}

type DetectionConfig struct {
	Window    time.Duration `yaml:"window"`
	Threshold int           `yaml:"threshold"`
	MaxAlerts int           `yaml:"max_alerts"`

	// thresholdSet keeps an explicit threshold of 0 from being defaulted.
	thresholdSet bool
}

func (d *DetectionConfig) UnmarshalYAML(n *yaml.Node) error {
	type plain DetectionConfig
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "threshold" {
			d.thresholdSet = true
		}
	}
	return nil
}

type MigrationConfig struct {
	Host        string        `yaml:"host"`
	FromSwitch  string        `yaml:"from_switch"`
	ToSwitch    string        `yaml:"to_switch"`
	NewPort     string        `yaml:"new_port"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

type QueueConfig struct {
	Transport string `yaml:"transport"` // file | memory
	Path      string `yaml:"path"`
	Mode      string `yaml:"mode"` // atomic | append
}

type ProbeConfig struct {
	VSCtl   string        `yaml:"vsctl"`
	Timeout time.Duration `yaml:"timeout"`
}

type ExecutorConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	OFCtl          string        `yaml:"ofctl"`
	Shell          string        `yaml:"shell"`
	NetnsPrefix    string        `yaml:"netns_prefix"`
	History        int           `yaml:"history"`
}

type SouthboundConfig struct {
	Source     string `yaml:"source"` // replay | capture
	Pcap       string `yaml:"pcap"`
	Paced      bool   `yaml:"paced"`
	Interface  string `yaml:"interface"`
	Filter     string `yaml:"filter"`
	Inject     bool   `yaml:"inject"`
	DatapathID uint64 `yaml:"datapath_id"`
	InPort     uint32 `yaml:"in_port"`
	Record     string `yaml:"record"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type AuditConfig struct {
	DSN string `yaml:"dsn"` // empty disables the audit store
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads path (optional), applies SDNGUARD_* overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SDNGUARD_QUEUE_PATH"); ok {
		c.Queue.Path = v
	}
	if v, ok := lookup("SDNGUARD_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	if v, ok := lookup("SDNGUARD_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("SDNGUARD_AUDIT_DSN"); ok {
		c.Audit.DSN = v
	}
	if v, ok := lookup("SDNGUARD_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SDNGUARD_THRESHOLD: %w", err)
		}
		c.Detection.Threshold = n
		c.Detection.thresholdSet = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Detection.Window == 0 {
		c.Detection.Window = time.Second
	}
	if c.Detection.Threshold == 0 && !c.Detection.thresholdSet {
		c.Detection.Threshold = 100
	}
	if c.Detection.MaxAlerts == 0 {
		c.Detection.MaxAlerts = 20
	}
	if c.Migration.Host == "" {
		c.Migration.Host = "h3"
	}
	if c.Migration.FromSwitch == "" {
		c.Migration.FromSwitch = "s2"
	}
	if c.Migration.ToSwitch == "" {
		c.Migration.ToSwitch = "s1"
	}
	if c.Migration.SettleDelay == 0 {
		c.Migration.SettleDelay = 2 * time.Second
	}
	if len(c.Topology.Hosts) == 0 && len(c.Topology.Switches) == 0 {
		c.Topology = topology.DefaultSpec()
	}
	if c.Queue.Transport == "" {
		c.Queue.Transport = "file"
	}
	if c.Queue.Path == "" {
		c.Queue.Path = "/tmp/mncmd"
	}
	if c.Queue.Mode == "" {
		c.Queue.Mode = "atomic"
	}
	if c.Probe.VSCtl == "" {
		c.Probe.VSCtl = "ovs-vsctl"
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = 5 * time.Second
	}
	if c.Executor.PollInterval == 0 {
		c.Executor.PollInterval = time.Second
	}
	if c.Executor.CommandTimeout == 0 {
		c.Executor.CommandTimeout = 30 * time.Second
	}
	if c.Executor.OFCtl == "" {
		c.Executor.OFCtl = "ovs-ofctl"
	}
	if c.Executor.Shell == "" {
		c.Executor.Shell = "/bin/sh"
	}
	if c.Executor.History == 0 {
		c.Executor.History = 50
	}
	if c.Southbound.Source == "" {
		c.Southbound.Source = "replay"
	}
	if c.Southbound.DatapathID == 0 {
		c.Southbound.DatapathID = 1
	}
	if c.Southbound.InPort == 0 {
		c.Southbound.InPort = 1
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9102"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Detection.Window < 0 {
		return fmt.Errorf("detection.window must be positive")
	}
	if c.Detection.Threshold < 0 {
		return fmt.Errorf("detection.threshold must not be negative")
	}
	if c.Migration.SettleDelay < 0 {
		return fmt.Errorf("migration.settle_delay must not be negative")
	}
	if c.Migration.FromSwitch == c.Migration.ToSwitch {
		return fmt.Errorf("migration.from_switch and migration.to_switch must differ")
	}
	switch c.Queue.Transport {
	case "file", "memory":
	default:
		return fmt.Errorf("queue.transport must be file or memory, got %q", c.Queue.Transport)
	}
	switch c.Queue.Mode {
	case "atomic", "append":
	default:
		return fmt.Errorf("queue.mode must be atomic or append, got %q", c.Queue.Mode)
	}
	switch c.Southbound.Source {
	case "replay":
	case "capture":
		if c.Southbound.Interface == "" {
			return fmt.Errorf("southbound.interface is required for capture")
		}
	default:
		return fmt.Errorf("southbound.source must be replay or capture, got %q", c.Southbound.Source)
	}
	switch c.Log.Level {
	case "debug", "info", "notice", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, notice or error, got %q", c.Log.Level)
	}

	topo, err := topology.New(c.Topology)
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if _, ok := topo.Host(c.Migration.Host); !ok {
		return fmt.Errorf("migration.host %q is not a topology host", c.Migration.Host)
	}
	if !topo.IsSwitch(c.Migration.FromSwitch) || !topo.IsSwitch(c.Migration.ToSwitch) {
		return fmt.Errorf("migration switches must be topology switches")
	}
	if _, err := topo.Between(c.Migration.Host, c.Migration.FromSwitch); err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	return nil
}
