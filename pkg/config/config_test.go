package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/models"
)

const sample = `
agent:
  url: http://127.0.0.1:8090
  walk_timeout: 45s
  rate: 10
  burst: 2
snmp:
  community: s3cret
  version: "1"
cli:
  methods: [telnet]
  username: admin
  password: pw
scan:
  cidr: 10.1.0.0/24
  local_reference_ip: 10.1.0.5/24
  switches: [10.1.0.2, 10.1.0.3]
  discover_macs: true
  device_type_strategy: oui-table
output:
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netdisco.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "public", cfg.SNMP.Community)
	assert.Equal(t, 5*time.Second, cfg.Agent.GetTimeout)
	assert.Equal(t, StrategyHash, cfg.Scan.DeviceTypeStrategy)
	assert.Equal(t, FormatTable, cfg.Output.Format)
	assert.True(t, cfg.Scan.EntityMIB)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8090", cfg.Agent.URL)
	assert.Equal(t, 45*time.Second, cfg.Agent.WalkTimeout)
	assert.Equal(t, 5*time.Second, cfg.Agent.GetTimeout)
	assert.Equal(t, 2, cfg.Agent.Burst)

	req := cfg.Request()
	assert.Equal(t, "10.1.0.0/24", req.CIDR)
	assert.Equal(t, "s3cret", req.Community)
	assert.Equal(t, models.SNMPv1, req.Version)
	assert.Equal(t, []string{"10.1.0.2", "10.1.0.3"}, req.Switches)
	assert.True(t, req.DiscoverMacs)

	cli := cfg.VlanCLI()
	assert.Equal(t, []models.ConnectionMethod{models.MethodTelnet}, cli.Methods)
	assert.Equal(t, "admin", cli.Credentials.Username)
	assert.Equal(t, 45*time.Second, cfg.AgentTimeouts().Walk)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NETDISCO_SNMP_COMMUNITY", "from-env")
	t.Setenv("NETDISCO_SCAN_SWITCHES", "10.9.0.1, 10.9.0.2")
	t.Setenv("NETDISCO_AGENT_GET_TIMEOUT", "2s")
	t.Setenv("NETDISCO_SCAN_ENTITY_MIB", "false")
	t.Setenv("NETDISCO_AGENT_BURST", "not-a-number")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SNMP.Community)
	assert.Equal(t, []string{"10.9.0.1", "10.9.0.2"}, cfg.Scan.Switches)
	assert.Equal(t, 2*time.Second, cfg.Agent.GetTimeout)
	assert.False(t, cfg.Scan.EntityMIB)
	assert.Equal(t, 2, cfg.Agent.Burst)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"version":  "snmp:\n  version: \"3\"\n",
		"method":   "cli:\n  methods: [snmp]\n",
		"strategy": "scan:\n  device_type_strategy: magic\n",
		"format":   "output:\n  format: xml\n",
		"url":      "agent:\n  url: ftp://agent\n",
		"burst":    "agent:\n  rate: 5\n  burst: 0\n",
		"syntax":   "agent: [\n",
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
