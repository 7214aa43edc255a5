// Package vlan discovers the VLANs configured on switches, over SNMP
// first and a CLI session second, and merges them across switches.
package vlan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/metrics"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/progress"
)

// Discovery paths.
const (
	PathSNMP = "snmp"
	PathCLI  = "cli"
)

// Switch is one discovery target.
type Switch struct {
	agent.SNMPTarget
	// Name identifies the switch in UsedBy; the IP is used when empty.
	Name         string
	Manufacturer string
}

// Identifier is the name recorded in UsedBy.
func (s Switch) Identifier() string {
	if s.Name != "" {
		return s.Name
	}
	return s.IP
}

// SwitchResult is what one switch contributed.
type SwitchResult struct {
	Switch Switch
	Path   string
	// VlanIDs is sorted and unique.
	VlanIDs []int
	Err     error
}

// Result of a multi-switch run.
type Result struct {
	Vlans    []models.DiscoveredVlan
	Switches []SwitchResult
	Warnings []string
}

// CLIConfig controls the fallback path.
type CLIConfig struct {
	// Methods are tried in order; snmp entries are ignored.
	Methods     []models.ConnectionMethod
	Port        int
	Credentials agent.Credentials
}

// Discoverer runs VLAN discovery through an Access Agent.
type Discoverer struct {
	agent  agent.Agent
	cli    CLIConfig
	logger func(string)
	mutex  sync.RWMutex
}

func NewDiscoverer(a agent.Agent, cli CLIConfig) *Discoverer {
	return &Discoverer{
		agent:  a,
		cli:    cli,
		logger: func(msg string) {},
	}
}

// SetLogger sets a custom logger function in a thread-safe manner
func (d *Discoverer) SetLogger(logger func(string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if logger != nil {
		d.logger = logger
	} else {
		d.logger = func(msg string) {}
	}
}

func (d *Discoverer) log(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	d.mutex.RLock()
	logger := d.logger
	d.mutex.RUnlock()
	if logger != nil {
		logger(msg)
	}
	return msg
}

// Discover queries every switch in order and merges the results. A
// switch that fails both paths contributes nothing and a warning; only
// context cancellation stops the run.
func (d *Discoverer) Discover(ctx context.Context, switches []Switch, rep *progress.Reporter) (*Result, error) {
	res := &Result{Vlans: []models.DiscoveredVlan{}}
	var lists [][]models.DiscoveredVlan

	for i, sw := range switches {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		vlans, sr, warnings := d.discoverSwitch(ctx, sw)
		res.Warnings = append(res.Warnings, warnings...)
		if sr.Err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Warnings = append(res.Warnings, d.log("%s: vlan discovery failed: %v", sw.IP, sr.Err))
		}
		res.Switches = append(res.Switches, sr)
		lists = append(lists, vlans)

		rep.Report(ctx, fmt.Sprintf("%s: %d vlans", sw.Identifier(), len(vlans)), progress.Linear(i+1, len(switches)))
	}

	res.Vlans = Merge(lists...)
	return res, nil
}

func (d *Discoverer) discoverSwitch(ctx context.Context, sw Switch) ([]models.DiscoveredVlan, SwitchResult, []string) {
	sr := SwitchResult{Switch: sw, VlanIDs: []int{}}
	var warnings []string

	vlans, invalid, snmpErr := d.viaSNMP(ctx, sw)
	for _, id := range invalid {
		metrics.VlansRejected.Inc()
		warnings = append(warnings, d.log("%s: dropping invalid vlan id %d", sw.IP, id))
	}
	if snmpErr == nil && len(vlans) > 0 {
		sr.Path = PathSNMP
	} else {
		if snmpErr != nil {
			d.log("%s: snmp vlan discovery failed, trying cli: %v", sw.IP, snmpErr)
		}
		if ctx.Err() != nil {
			sr.Err = ctx.Err()
			return nil, sr, warnings
		}

		var cliErr error
		vlans, invalid, cliErr = d.viaCLI(ctx, sw)
		for _, id := range invalid {
			metrics.VlansRejected.Inc()
			warnings = append(warnings, d.log("%s: dropping invalid vlan id %d", sw.IP, id))
		}
		if cliErr != nil {
			if snmpErr == nil {
				snmpErr = errors.New("no vlans reported")
			}
			sr.Err = fmt.Errorf("snmp: %v; cli: %w", snmpErr, cliErr)
			return nil, sr, warnings
		}
		sr.Path = PathCLI
	}

	vlans = normalize(vlans, sw)
	for _, v := range vlans {
		sr.VlanIDs = append(sr.VlanIDs, v.VlanID)
	}
	sort.Ints(sr.VlanIDs)
	metrics.VlansDiscovered.WithLabelValues(sr.Path).Add(float64(len(vlans)))
	return vlans, sr, warnings
}

// viaSNMP keeps the first occurrence of every id, the same rule the CLI
// parsers apply. The agent's UsedBy entries are device identifiers.
func (d *Discoverer) viaSNMP(ctx context.Context, sw Switch) ([]models.DiscoveredVlan, []int, error) {
	resp, err := d.agent.DiscoverVlans(ctx, agent.VlanRequest{SNMPTarget: sw.SNMPTarget, Make: sw.Manufacturer})
	if err != nil {
		return nil, nil, err
	}

	var invalid []int
	seen := map[int]bool{}
	vlans := make([]models.DiscoveredVlan, 0, len(resp.Vlans))
	for _, v := range resp.Vlans {
		if !models.ValidVlanID(v.VlanID) {
			invalid = append(invalid, v.VlanID)
			continue
		}
		if seen[v.VlanID] {
			d.log("%s: ignoring repeated vlan %d", sw.IP, v.VlanID)
			continue
		}
		seen[v.VlanID] = true
		vlans = append(vlans, models.DiscoveredVlan{
			VlanID:      v.VlanID,
			Name:        v.Name,
			SegmentName: v.Name,
			Subnet:      v.Subnet,
			UsedBy:      append([]string{}, v.UsedBy...),
		})
	}
	return vlans, invalid, nil
}

func (d *Discoverer) viaCLI(ctx context.Context, sw Switch) ([]models.DiscoveredVlan, []int, error) {
	vendor := VendorFor(sw.Manufacturer)
	var lastErr error

	for _, method := range d.cli.Methods {
		if method != models.MethodSSH && method != models.MethodTelnet {
			continue
		}
		output, err := d.runCommands(ctx, method, sw.IP, Commands(vendor))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			d.log("%s: %s session failed: %v", sw.IP, method, err)
			continue
		}

		parsed, err := Parse(vendor, output)
		if err != nil {
			return nil, nil, err
		}
		return parsed.Vlans, parsed.Invalid, nil
	}

	if lastErr == nil {
		lastErr = errdefs.Validationf("vlan cli", "no cli connection method configured")
	}
	return nil, nil, lastErr
}

// runCommands opens a session, runs commands in order and returns the
// output of the last one. The session is always closed, even when ctx
// has been cancelled.
func (d *Discoverer) runCommands(ctx context.Context, method models.ConnectionMethod, ip string, commands []string) (string, error) {
	conn, err := d.agent.Connect(ctx, agent.ConnectRequest{
		Method:      method,
		IP:          ip,
		Port:        d.cli.Port,
		Credentials: d.cli.Credentials,
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if err := d.agent.Disconnect(context.WithoutCancel(ctx), agent.DisconnectRequest{Method: method, SessionID: conn.SessionID}); err != nil {
			d.log("%s: %s disconnect failed: %v", ip, method, err)
		}
	}()

	var output string
	for _, cmd := range commands {
		resp, err := d.agent.Execute(ctx, agent.ExecuteRequest{Method: method, SessionID: conn.SessionID, Command: cmd})
		if err != nil {
			return "", fmt.Errorf("%q: %w", cmd, err)
		}
		output = resp.Output
	}
	return output, nil
}

// normalize records sw first in UsedBy, followed by any other reporters
// the agent named. Ports is left as reported.
func normalize(vlans []models.DiscoveredVlan, sw Switch) []models.DiscoveredVlan {
	id := sw.Identifier()
	for i := range vlans {
		usedBy := []string{id}
		for _, u := range vlans[i].UsedBy {
			if u != "" && u != sw.IP && !contains(usedBy, u) {
				usedBy = append(usedBy, u)
			}
		}
		vlans[i].UsedBy = usedBy
		if vlans[i].SegmentName == "" {
			vlans[i].SegmentName = vlans[i].Name
		}
	}
	return vlans
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
