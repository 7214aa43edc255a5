package discovery

import (
	"net/netip"
	"strings"
	"time"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/subnet"
)

// DefaultLocalMaskBits applies when LocalReference carries no prefix length.
const DefaultLocalMaskBits = 24

// Request describes one discovery run. Hosts are scanned when CIDR is
// set; Switches adds VLAN/MAC targets that need not be inside CIDR.
type Request struct {
	CIDR string `json:"cidr,omitempty" yaml:"cidr"`
	// LocalReference is the address the agent sees the network from,
	// "a.b.c.d" or "a.b.c.d/n". Hosts outside it are routed.
	LocalReference string             `json:"local_reference_ip,omitempty" yaml:"local_reference_ip"`
	MaxHosts       int                `json:"max_hosts,omitempty" yaml:"max_hosts"`
	Community      string             `json:"community,omitempty" yaml:"community"`
	Version        models.SNMPVersion `json:"version,omitempty" yaml:"version"`
	Switches       []string           `json:"switches,omitempty" yaml:"switches"`
	DiscoverVlans  bool               `json:"discover_vlans" yaml:"discover_vlans"`
	DiscoverMacs   bool               `json:"discover_macs" yaml:"discover_macs"`
}

// plan is a validated Request.
type plan struct {
	req       Request
	target    agent.SNMPTarget
	hosts     *subnet.Range
	localRef  netip.Addr
	localBits int
	switches  []string
}

func (r Request) validate() (*plan, error) {
	p := &plan{req: r, localBits: DefaultLocalMaskBits}

	if strings.TrimSpace(r.CIDR) != "" {
		rng, err := subnet.Parse(r.CIDR)
		if err != nil {
			return nil, err
		}
		p.hosts = rng
	}

	for _, s := range r.Switches {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			return nil, errdefs.Validationf("discovery", "invalid switch address %q", s)
		}
		p.switches = append(p.switches, addr.String())
	}

	if p.hosts == nil && len(p.switches) == 0 {
		return nil, errdefs.Validationf("discovery", "nothing to discover: set a CIDR or at least one switch")
	}
	if p.hosts == nil && !r.DiscoverVlans && !r.DiscoverMacs {
		return nil, errdefs.Validationf("discovery", "switches given without vlan or mac discovery")
	}

	if ref := strings.TrimSpace(r.LocalReference); ref != "" {
		if strings.Contains(ref, "/") {
			prefix, err := netip.ParsePrefix(ref)
			if err != nil || !prefix.Addr().Is4() {
				return nil, errdefs.Validationf("discovery", "invalid local reference %q", ref)
			}
			p.localRef, p.localBits = prefix.Addr(), prefix.Bits()
		} else {
			addr, err := netip.ParseAddr(ref)
			if err != nil || !addr.Is4() {
				return nil, errdefs.Validationf("discovery", "invalid local reference %q", ref)
			}
			p.localRef = addr
		}
	}

	if r.MaxHosts < 0 {
		return nil, errdefs.Validationf("discovery", "max hosts must not be negative")
	}
	if r.MaxHosts == 0 {
		p.req.MaxHosts = subnet.DefaultScanCap
	}

	version := r.Version
	if version == "" {
		version = models.SNMPv2c
	}
	if _, err := models.ParseSNMPVersion(string(version)); err != nil {
		return nil, errdefs.Validationf("discovery", "%v", err)
	}
	community := r.Community
	if community == "" {
		community = "public"
	}
	p.target = agent.SNMPTarget{Community: community, Version: version}

	// MAC tables are walked per discovered VLAN
	if r.DiscoverMacs {
		p.req.DiscoverVlans = true
	}
	return p, nil
}

// Result is everything a run found. It is handed to the caller as is;
// persisting it is the caller's concern.
type Result struct {
	RunID        string                    `json:"run_id"`
	CIDR         string                    `json:"cidr,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	TotalHosts   int64                     `json:"total_hosts"`
	HostsScanned int                       `json:"hosts_scanned"`
	Sampled      bool                      `json:"sampled"`
	Devices      []models.DiscoveredDevice `json:"devices"`
	Vlans        []models.DiscoveredVlan   `json:"vlans"`
	MacAddresses []models.MacAddressEntry  `json:"mac_addresses"`
	// Warnings lists every degraded unit of work.
	Warnings []string `json:"warnings,omitempty"`
}

// NeedsReview returns the devices flagged for manual verification.
func (r *Result) NeedsReview() []models.DiscoveredDevice {
	var out []models.DiscoveredDevice
	for _, d := range r.Devices {
		if d.NeedsVerification {
			out = append(out, d)
		}
	}
	return out
}
