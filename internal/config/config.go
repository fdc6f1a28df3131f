package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"telemon/internal/logging"
)

const (
	DefaultLogLevel           = "INFO"
	DefaultSimulatorPort      = 5000
	DefaultSimulatorMetrics   = 8000
	DefaultVoIPPort           = 9010
	DefaultDiameterPort       = 9111
	DefaultIPsecPort          = 8079
	DefaultSimulationInterval = 5
	DefaultBackoffInterval    = 10
	DefaultHistorySize        = 100
	DefaultPrometheusAddr     = "prometheus:9090"
	DefaultGrafanaAddr        = "grafana:3000"
)

// Exporter names, also used as config sections and env prefixes.
const (
	VoIP     = "voip"
	Diameter = "diameter"
	IPsec    = "ipsec"
)

// ExporterNames lists the exporters in display order.
var ExporterNames = []string{Diameter, VoIP, IPsec}

// Config holds settings for every process of the stack.
type Config struct {
	LogLevel       string          `yaml:"log_level"`
	RuntimeMetrics bool            `yaml:"runtime_metrics"`
	Simulator      SimulatorConfig `yaml:"simulator"`
	VoIP           ExporterConfig  `yaml:"voip"`
	Diameter       ExporterConfig  `yaml:"diameter"`
	IPsec          ExporterConfig  `yaml:"ipsec"`
}

// SimulatorConfig is used by the aggregating simulator process.
type SimulatorConfig struct {
	ListenPort         int               `yaml:"listen_port"`
	MetricsPort        int               `yaml:"metrics_port"`
	SimulationEnabled  *bool             `yaml:"simulation_enabled,omitempty"`
	SimulationInterval int               `yaml:"simulation_interval"`
	BackoffInterval    int               `yaml:"backoff_interval"`
	HistorySize        int               `yaml:"history_size"`
	Seed               int64             `yaml:"seed"`
	PrometheusAddr     string            `yaml:"prometheus_addr"`
	GrafanaAddr        string            `yaml:"grafana_addr"`
	Exporters          map[string]string `yaml:"exporters"`
}

// ExporterConfig is used by a single-domain exporter process.
type ExporterConfig struct {
	ListenPort         int   `yaml:"listen_port"`
	SimulationEnabled  *bool `yaml:"simulation_enabled,omitempty"`
	SimulationInterval int   `yaml:"simulation_interval"`
	BackoffInterval    int   `yaml:"backoff_interval"`
	Seed               int64 `yaml:"seed"`
}

// Enabled reports whether the simulation loop should tick.
func (e ExporterConfig) Enabled() bool {
	return e.SimulationEnabled == nil || *e.SimulationEnabled
}

// Interval returns the tick interval.
func (e ExporterConfig) Interval() time.Duration {
	return time.Duration(e.SimulationInterval) * time.Second
}

// Backoff returns the wait after a failed tick.
func (e ExporterConfig) Backoff() time.Duration {
	return time.Duration(e.BackoffInterval) * time.Second
}

// Enabled reports whether the simulation loop should tick.
func (s SimulatorConfig) Enabled() bool {
	return s.SimulationEnabled == nil || *s.SimulationEnabled
}

// Interval returns the tick interval.
func (s SimulatorConfig) Interval() time.Duration {
	return time.Duration(s.SimulationInterval) * time.Second
}

// Backoff returns the wait after a failed tick.
func (s SimulatorConfig) Backoff() time.Duration {
	return time.Duration(s.BackoffInterval) * time.Second
}

// Exporter returns the section for the named exporter.
func (c *Config) Exporter(name string) (*ExporterConfig, error) {
	switch name {
	case VoIP:
		return &c.VoIP, nil
	case Diameter:
		return &c.Diameter, nil
	case IPsec:
		return &c.IPsec, nil
	}
	return nil, fmt.Errorf("unknown exporter %q", name)
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// Load reads and parses a YAML config file. An empty path or a missing
// file yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate reports every invalid setting at once.
func Validate(cfg Config) error {
	var errs error
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log_level: %w", err))
	}

	s := cfg.Simulator
	errs = multierr.Append(errs, checkPort("simulator.listen_port", s.ListenPort))
	errs = multierr.Append(errs, checkPort("simulator.metrics_port", s.MetricsPort))
	errs = multierr.Append(errs, checkPositive("simulator.simulation_interval", s.SimulationInterval))
	errs = multierr.Append(errs, checkPositive("simulator.backoff_interval", s.BackoffInterval))
	errs = multierr.Append(errs, checkPositive("simulator.history_size", s.HistorySize))

	for _, name := range ExporterNames {
		e, _ := cfg.Exporter(name)
		errs = multierr.Append(errs, checkPort(name+".listen_port", e.ListenPort))
		errs = multierr.Append(errs, checkPositive(name+".simulation_interval", e.SimulationInterval))
		errs = multierr.Append(errs, checkPositive(name+".backoff_interval", e.BackoffInterval))
	}
	return errs
}

func checkPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s: port %d out of range 1-65535", key, port)
	}
	return nil
}

func checkPositive(key string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s: must be greater than zero, got %d", key, v)
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	s := &cfg.Simulator
	if s.ListenPort == 0 {
		s.ListenPort = DefaultSimulatorPort
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = DefaultSimulatorMetrics
	}
	if s.SimulationEnabled == nil {
		s.SimulationEnabled = boolPtr(true)
	}
	if s.SimulationInterval == 0 {
		s.SimulationInterval = DefaultSimulationInterval
	}
	if s.BackoffInterval == 0 {
		s.BackoffInterval = DefaultBackoffInterval
	}
	if s.HistorySize == 0 {
		s.HistorySize = DefaultHistorySize
	}
	if s.PrometheusAddr == "" {
		s.PrometheusAddr = DefaultPrometheusAddr
	}
	if s.GrafanaAddr == "" {
		s.GrafanaAddr = DefaultGrafanaAddr
	}
	if s.Exporters == nil {
		s.Exporters = make(map[string]string, len(ExporterNames))
	}

	ports := map[string]int{VoIP: DefaultVoIPPort, Diameter: DefaultDiameterPort, IPsec: DefaultIPsecPort}
	for _, name := range ExporterNames {
		e, _ := cfg.Exporter(name)
		if e.ListenPort == 0 {
			e.ListenPort = ports[name]
		}
		if e.SimulationEnabled == nil {
			e.SimulationEnabled = boolPtr(true)
		}
		if e.SimulationInterval == 0 {
			e.SimulationInterval = DefaultSimulationInterval
		}
		if e.BackoffInterval == 0 {
			e.BackoffInterval = DefaultBackoffInterval
		}
		if s.Exporters[name] == "" {
			s.Exporters[name] = fmt.Sprintf("%s-exporter:%d", name, ports[name])
		}
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Every unparseable
// value is reported.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
			return
		}
		*dst = n
	}
	boolean := func(key string, dst **bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
			return
		}
		*dst = boolPtr(b)
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	integer("SIMULATION_INTERVAL", &cfg.Simulator.SimulationInterval)
	boolean("SIMULATION_ENABLED", &cfg.Simulator.SimulationEnabled)
	integer("SIMULATOR_LISTEN_PORT", &cfg.Simulator.ListenPort)
	integer("SIMULATOR_METRICS_PORT", &cfg.Simulator.MetricsPort)
	integer("HISTORY_SIZE", &cfg.Simulator.HistorySize)
	str("PROMETHEUS_ADDR", &cfg.Simulator.PrometheusAddr)
	str("GRAFANA_ADDR", &cfg.Simulator.GrafanaAddr)

	for _, name := range ExporterNames {
		e, _ := cfg.Exporter(name)
		prefix := strings.ToUpper(name) + "_"
		integer(prefix+"LISTEN_PORT", &e.ListenPort)
		boolean(prefix+"SIMULATION_ENABLED", &e.SimulationEnabled)
		integer(prefix+"SIMULATION_INTERVAL", &e.SimulationInterval)
	}
	return errs
}

func boolPtr(v bool) *bool { return &v }
