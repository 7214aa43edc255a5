// Package config handles netdisco configuration: a YAML file, then
// NETDISCO_* environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/agent/httpagent"
	"github.com/scottpeterman/netdisco/pkg/discovery"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/vlan"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NETDISCO_"

// Device type strategies for MAC table entries.
const (
	StrategyHash     = "hash"
	StrategyOUITable = "oui-table"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Config holds all application configuration
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	SNMP   SNMPConfig   `yaml:"snmp"`
	CLI    CLIConfig    `yaml:"cli"`
	Scan   ScanConfig   `yaml:"scan"`
	DNS    DNSConfig    `yaml:"dns"`
	Tables TablesConfig `yaml:"tables"`
	Output OutputConfig `yaml:"output"`
	API    APIConfig    `yaml:"api"`
}

// AgentConfig locates the Access Agent. An empty URL selects the
// in-process agent.
type AgentConfig struct {
	URL         string        `yaml:"url"`
	GetTimeout  time.Duration `yaml:"get_timeout"`
	WalkTimeout time.Duration `yaml:"walk_timeout"`
	CLITimeout  time.Duration `yaml:"cli_timeout"`
	// Rate is calls per second; 0 disables throttling.
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
	ARPPath string  `yaml:"arp_path"`
}

type SNMPConfig struct {
	Community string `yaml:"community"`
	Version   string `yaml:"version"`
}

// CLIConfig is passed through to the agent for the VLAN CLI fallback.
type CLIConfig struct {
	Methods        []string `yaml:"methods"`
	Port           int      `yaml:"port"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	EnablePassword string   `yaml:"enable_password"`
}

type ScanConfig struct {
	CIDR               string   `yaml:"cidr"`
	LocalReferenceIP   string   `yaml:"local_reference_ip"`
	MaxHosts           int      `yaml:"max_hosts"`
	Switches           []string `yaml:"switches"`
	DiscoverVlans      bool     `yaml:"discover_vlans"`
	DiscoverMacs       bool     `yaml:"discover_macs"`
	DeviceTypeStrategy string   `yaml:"device_type_strategy"`
	AgentMacDiscovery  bool     `yaml:"agent_mac_discovery"`
	EntityMIB          bool     `yaml:"entity_mib"`
}

type DNSConfig struct {
	Enabled bool          `yaml:"enabled"`
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

// TablesConfig overrides the embedded fingerprint tables.
type TablesConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig selects how results leave the process. A file ending in
// .json or .json.gz is written as a snapshot; SnapshotDir keeps the
// last Keep runs served by the API.
type OutputConfig struct {
	Format      string `yaml:"format"`
	File        string `yaml:"file"`
	SnapshotDir string `yaml:"snapshot_dir"`
	Keep        int    `yaml:"keep"`
	Compress    bool   `yaml:"compress"`
}

type APIConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			GetTimeout:  httpagent.DefaultTimeouts.Get,
			WalkTimeout: httpagent.DefaultTimeouts.Walk,
			CLITimeout:  httpagent.DefaultTimeouts.CLI,
			Rate:        20,
			Burst:       5,
		},
		SNMP: SNMPConfig{
			Community: "public",
			Version:   string(models.SNMPv2c),
		},
		CLI: CLIConfig{
			Methods: []string{string(models.MethodSSH), string(models.MethodTelnet)},
		},
		Scan: ScanConfig{
			MaxHosts:           254,
			DeviceTypeStrategy: StrategyHash,
			EntityMIB:          true,
		},
		DNS: DNSConfig{
			Enabled: true,
			Timeout: 2 * time.Second,
		},
		Output: OutputConfig{
			Format:   FormatTable,
			Keep:     20,
			Compress: true,
		},
		API: APIConfig{Listen: ":8080"},
	}
}

// Load reads path (skipped when empty), applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from NETDISCO_* variables.
func (c *Config) ApplyEnv() {
	c.Agent.URL = getenv("AGENT_URL", c.Agent.URL)
	c.Agent.GetTimeout = getdur("AGENT_GET_TIMEOUT", c.Agent.GetTimeout)
	c.Agent.WalkTimeout = getdur("AGENT_WALK_TIMEOUT", c.Agent.WalkTimeout)
	c.Agent.CLITimeout = getdur("AGENT_CLI_TIMEOUT", c.Agent.CLITimeout)
	c.Agent.Rate = getfloat("AGENT_RATE", c.Agent.Rate)
	c.Agent.Burst = getint("AGENT_BURST", c.Agent.Burst)
	c.Agent.ARPPath = getenv("ARP_PATH", c.Agent.ARPPath)

	c.SNMP.Community = getenv("SNMP_COMMUNITY", c.SNMP.Community)
	c.SNMP.Version = getenv("SNMP_VERSION", c.SNMP.Version)

	if methods := splitCSV(getenv("CLI_METHODS", "")); methods != nil {
		c.CLI.Methods = methods
	}
	c.CLI.Port = getint("CLI_PORT", c.CLI.Port)
	c.CLI.Username = getenv("CLI_USERNAME", c.CLI.Username)
	c.CLI.Password = getenv("CLI_PASSWORD", c.CLI.Password)
	c.CLI.EnablePassword = getenv("CLI_ENABLE_PASSWORD", c.CLI.EnablePassword)

	c.Scan.CIDR = getenv("SCAN_CIDR", c.Scan.CIDR)
	c.Scan.LocalReferenceIP = getenv("SCAN_LOCAL_REFERENCE_IP", c.Scan.LocalReferenceIP)
	c.Scan.MaxHosts = getint("SCAN_MAX_HOSTS", c.Scan.MaxHosts)
	if switches := splitCSV(getenv("SCAN_SWITCHES", "")); switches != nil {
		c.Scan.Switches = switches
	}
	c.Scan.DiscoverVlans = getbool("SCAN_DISCOVER_VLANS", c.Scan.DiscoverVlans)
	c.Scan.DiscoverMacs = getbool("SCAN_DISCOVER_MACS", c.Scan.DiscoverMacs)
	c.Scan.DeviceTypeStrategy = getenv("SCAN_DEVICE_TYPE_STRATEGY", c.Scan.DeviceTypeStrategy)
	c.Scan.AgentMacDiscovery = getbool("SCAN_AGENT_MAC_DISCOVERY", c.Scan.AgentMacDiscovery)
	c.Scan.EntityMIB = getbool("SCAN_ENTITY_MIB", c.Scan.EntityMIB)

	c.DNS.Enabled = getbool("DNS_ENABLED", c.DNS.Enabled)
	c.DNS.Server = getenv("DNS_SERVER", c.DNS.Server)
	c.DNS.Timeout = getdur("DNS_TIMEOUT", c.DNS.Timeout)

	c.Tables.Path = getenv("TABLES_PATH", c.Tables.Path)
	c.Output.Format = getenv("OUTPUT_FORMAT", c.Output.Format)
	c.Output.File = getenv("OUTPUT_FILE", c.Output.File)
	c.Output.SnapshotDir = getenv("OUTPUT_SNAPSHOT_DIR", c.Output.SnapshotDir)
	c.Output.Keep = getint("OUTPUT_KEEP", c.Output.Keep)
	c.API.Listen = getenv("API_LISTEN", c.API.Listen)
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if _, err := models.ParseSNMPVersion(c.SNMP.Version); err != nil {
		return err
	}
	if c.SNMP.Community == "" {
		return fmt.Errorf("snmp community must not be empty")
	}
	if _, err := c.CLIMethods(); err != nil {
		return err
	}
	if c.CLI.Port < 0 || c.CLI.Port > 65535 {
		return fmt.Errorf("cli port must be between 0 and 65535, got %d", c.CLI.Port)
	}

	if c.Agent.Rate < 0 {
		return fmt.Errorf("agent rate cannot be negative, got %g", c.Agent.Rate)
	}
	if c.Agent.Rate > 0 && c.Agent.Burst < 1 {
		return fmt.Errorf("agent burst must be at least 1 when rate limiting, got %d", c.Agent.Burst)
	}
	if c.Agent.GetTimeout < 0 || c.Agent.WalkTimeout < 0 || c.Agent.CLITimeout < 0 {
		return fmt.Errorf("agent timeouts cannot be negative")
	}
	if c.Agent.URL != "" && !strings.HasPrefix(c.Agent.URL, "http://") && !strings.HasPrefix(c.Agent.URL, "https://") {
		return fmt.Errorf("agent url must be http or https, got %q", c.Agent.URL)
	}

	if c.Scan.MaxHosts < 0 {
		return fmt.Errorf("scan max_hosts cannot be negative, got %d", c.Scan.MaxHosts)
	}
	if c.Scan.DeviceTypeStrategy != StrategyHash && c.Scan.DeviceTypeStrategy != StrategyOUITable {
		return fmt.Errorf("scan device_type_strategy must be %q or %q, got %q", StrategyHash, StrategyOUITable, c.Scan.DeviceTypeStrategy)
	}
	if c.DNS.Timeout < 0 {
		return fmt.Errorf("dns timeout cannot be negative, got %s", c.DNS.Timeout)
	}
	if c.Output.Format != FormatTable && c.Output.Format != FormatJSON {
		return fmt.Errorf("output format must be %q or %q, got %q", FormatTable, FormatJSON, c.Output.Format)
	}
	return nil
}

// CLIMethods parses the configured session methods in order. SNMP is
// not a CLI method and is rejected.
func (c *Config) CLIMethods() ([]models.ConnectionMethod, error) {
	methods := make([]models.ConnectionMethod, 0, len(c.CLI.Methods))
	for _, s := range c.CLI.Methods {
		m, err := models.ParseConnectionMethod(s)
		if err != nil {
			return nil, err
		}
		if m == models.MethodSNMP {
			return nil, fmt.Errorf("cli methods: snmp is not a session method")
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// VlanCLI builds the VLAN discoverer's CLI fallback settings.
func (c *Config) VlanCLI() vlan.CLIConfig {
	methods, _ := c.CLIMethods()
	return vlan.CLIConfig{
		Methods: methods,
		Port:    c.CLI.Port,
		Credentials: agent.Credentials{
			Username:       c.CLI.Username,
			Password:       c.CLI.Password,
			EnablePassword: c.CLI.EnablePassword,
		},
	}
}

// AgentTimeouts returns the per-call budgets for the HTTP agent client.
func (c *Config) AgentTimeouts() httpagent.Timeouts {
	return httpagent.Timeouts{
		Get:  c.Agent.GetTimeout,
		Walk: c.Agent.WalkTimeout,
		CLI:  c.Agent.CLITimeout,
	}
}

// Request builds a discovery request from the scan and snmp sections.
func (c *Config) Request() discovery.Request {
	return discovery.Request{
		CIDR:           c.Scan.CIDR,
		LocalReference: c.Scan.LocalReferenceIP,
		MaxHosts:       c.Scan.MaxHosts,
		Community:      c.SNMP.Community,
		Version:        models.SNMPVersion(c.SNMP.Version),
		Switches:       append([]string(nil), c.Scan.Switches...),
		DiscoverVlans:  c.Scan.DiscoverVlans,
		DiscoverMacs:   c.Scan.DiscoverMacs,
	}
}

// Helper functions for environment variable parsing

func getenv(key, defaultValue string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return defaultValue
}

func getbool(key string, defaultValue bool) bool {
	v := strings.ToLower(os.Getenv(EnvPrefix + key))
	if v == "" {
		return defaultValue
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func getint(key string, defaultValue int) int {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return defaultValue
}

func getfloat(key string, defaultValue float64) float64 {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return defaultValue
}

func getdur(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultValue
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
