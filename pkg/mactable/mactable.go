// Package mactable collects per-VLAN MAC address tables from switches by
// walking the Bridge-MIB forwarding table.
package mactable

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/metrics"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/progress"
)

// OIDBridgeForwardingTable is dot1dTpFdbPort; the row index is the MAC.
const OIDBridgeForwardingTable = "1.3.6.1.2.1.17.4.3.1.2"

// VlanCommunity returns the community string that selects the bridge
// context for vlanID. VLAN 1 is the default context.
func VlanCommunity(community string, vlanID int) string {
	if vlanID == 1 {
		return community
	}
	return community + "@" + strconv.Itoa(vlanID)
}

// DecodeBridgeOID turns the last six sub-identifiers of a forwarding
// table OID into a MAC address.
func DecodeBridgeOID(oid string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(oid, "."), ".")
	if len(parts) < 6 {
		return "", false
	}
	octets := make([]string, 6)
	for i, p := range parts[len(parts)-6:] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return "", false
		}
		octets[i] = fmt.Sprintf("%02X", n)
	}
	return strings.Join(octets, ":"), true
}

// Result is the outcome of one switch walk.
type Result struct {
	Entries []models.MacAddressEntry
	// VlanIDs lists the VLANs that were walked successfully.
	VlanIDs  []int
	Warnings []string
}

// Discoverer walks forwarding tables through an Access Agent.
type Discoverer struct {
	agent      agent.Agent
	classifier DeviceTypeClassifier
	agentSide  bool
	logger     func(string)
	mutex      sync.RWMutex
}

// NewDiscoverer creates a Discoverer. A nil classifier selects HashClassifier.
func NewDiscoverer(a agent.Agent, classifier DeviceTypeClassifier) *Discoverer {
	if classifier == nil {
		classifier = NewHashClassifier(nil)
	}
	return &Discoverer{
		agent:      a,
		classifier: classifier,
		logger:     func(msg string) {},
	}
}

// SetAgentSide delegates the whole multi-VLAN walk to the agent's
// discoverMacAddresses operation instead of walking VLAN by VLAN.
func (d *Discoverer) SetAgentSide(enabled bool) {
	d.agentSide = enabled
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

func (d *Discoverer) warn(res *Result, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	res.Warnings = append(res.Warnings, msg)

	d.mutex.RLock()
	logger := d.logger
	d.mutex.RUnlock()
	if logger != nil {
		logger(msg)
	}
}

// Discover walks the forwarding table of target once per VLAN in
// vlanIDs, in ascending order. switchName is recorded on every entry.
// An empty VLAN list is an error; a failed VLAN is skipped.
func (d *Discoverer) Discover(ctx context.Context, target agent.SNMPTarget, switchName string, vlanIDs []int, rep *progress.Reporter) (*Result, error) {
	res := &Result{Entries: []models.MacAddressEntry{}, VlanIDs: []int{}}

	ids := d.prepare(res, target.IP, vlanIDs)
	if len(ids) == 0 {
		return res, errdefs.Validationf("mac discovery", "%s: no VLANs to walk, discover VLANs first", target.IP)
	}
	if switchName == "" {
		switchName = target.IP
	}

	if d.agentSide {
		return d.discoverAgentSide(ctx, target, switchName, ids, res, rep)
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		req := agent.WalkRequest{SNMPTarget: target, OID: OIDBridgeForwardingTable}
		req.Community = VlanCommunity(target.Community, id)

		resp, err := d.agent.SNMPWalk(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			d.warn(res, "%s: vlan %d: bridge table walk failed: %v", target.IP, id, err)
			rep.Report(ctx, fmt.Sprintf("%s: vlan %d failed", switchName, id), progress.Linear(i+1, len(ids)))
			continue
		}

		count := 0
		for _, row := range resp.Results {
			mac, ok := DecodeBridgeOID(row.OID)
			if !ok {
				continue
			}
			res.Entries = append(res.Entries, d.entry(mac, id, row.Value, switchName))
			count++
		}
		res.VlanIDs = append(res.VlanIDs, id)
		metrics.MacEntriesDiscovered.Add(float64(count))

		rep.Report(ctx, fmt.Sprintf("%s: vlan %d: %d addresses", switchName, id, count), progress.Linear(i+1, len(ids)))
	}
	return res, nil
}

func (d *Discoverer) discoverAgentSide(ctx context.Context, target agent.SNMPTarget, switchName string, ids []int, res *Result, rep *progress.Reporter) (*Result, error) {
	resp, err := d.agent.DiscoverMacAddresses(ctx, agent.MacRequest{SNMPTarget: target, VlanIDs: ids})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		d.warn(res, "%s: mac address discovery failed: %v", target.IP, err)
		rep.Report(ctx, fmt.Sprintf("%s: mac discovery failed", switchName), 100)
		return res, nil
	}

	requested := make(map[int]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}
	for _, m := range resp.MacAddresses {
		if !requested[m.VlanID] {
			continue
		}
		mac, ok := models.NormalizeMAC(m.MACAddress)
		if !ok {
			continue
		}
		res.Entries = append(res.Entries, d.entry(mac, m.VlanID, m.Port, switchName))
	}
	metrics.MacEntriesDiscovered.Add(float64(len(res.Entries)))

	walked := make(map[int]bool, len(resp.VlanIDs))
	for _, id := range resp.VlanIDs {
		walked[id] = true
	}
	for _, id := range ids {
		if walked[id] {
			res.VlanIDs = append(res.VlanIDs, id)
		} else {
			d.warn(res, "%s: vlan %d: not walked by agent", target.IP, id)
		}
	}

	rep.Report(ctx, fmt.Sprintf("%s: %d addresses", switchName, len(res.Entries)), 100)
	return res, nil
}

func (d *Discoverer) entry(mac string, vlanID int, port, switchName string) models.MacAddressEntry {
	return models.MacAddressEntry{
		MACAddress: mac,
		VlanID:     vlanID,
		DeviceType: d.classifier.DeviceType(mac),
		Port:       port,
		Switch:     switchName,
	}
}

// prepare drops out-of-range ids and returns the rest sorted and unique.
func (d *Discoverer) prepare(res *Result, ip string, vlanIDs []int) []int {
	seen := make(map[int]bool, len(vlanIDs))
	ids := make([]int, 0, len(vlanIDs))
	for _, id := range vlanIDs {
		if !models.ValidVlanID(id) {
			metrics.VlansRejected.Inc()
			d.warn(res, "%s: ignoring invalid vlan id %d", ip, id)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
