// Package probe decides whether an address is reachable and, for hosts
// on the local segment, which MAC answered.
package probe

import (
	"context"
	"net/netip"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/subnet"
)

// Result of a single probe. MACAddress may be empty even when Reachable.
type Result struct {
	Reachable  bool
	MACAddress string
	IsRouted   bool
}

// Prober asks the Access Agent about one address at a time.
type Prober struct {
	agent agent.Agent
}

func New(a agent.Agent) *Prober {
	return &Prober{agent: a}
}

// Probe checks ip. A host outside localRef/maskBits is routed: the agent
// has no ARP visibility of it, so any MAC it returns is discarded.
// An invalid localRef treats every host as local.
func (p *Prober) Probe(ctx context.Context, ip netip.Addr, localRef netip.Addr, maskBits int) (Result, error) {
	if !ip.Is4() {
		return Result{}, errdefs.Validationf("probe", "not an IPv4 address: %s", ip)
	}

	res := Result{}
	if localRef.IsValid() {
		res.IsRouted = !subnet.SameSubnet(ip, localRef, maskBits)
	}

	resp, err := p.agent.Probe(ctx, agent.ProbeRequest{IP: ip.String()})
	if err != nil {
		return res, err
	}

	res.Reachable = resp.Reachable
	if res.Reachable && !res.IsRouted {
		if mac, ok := models.NormalizeMAC(resp.MACAddress); ok {
			res.MACAddress = mac
		}
	}
	return res, nil
}
