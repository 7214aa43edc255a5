// Package subnet turns an IPv4 CIDR into a usable host range and a
// bounded list of addresses to probe.
package subnet

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/scottpeterman/netdisco/pkg/errdefs"
)

// DefaultScanCap bounds the number of addresses probed per run.
const DefaultScanCap = 254

// Range is the address math for one IPv4 prefix.
type Range struct {
	Prefix     netip.Prefix
	Network    netip.Addr
	Broadcast  netip.Addr
	First      netip.Addr // first usable host
	Last       netip.Addr // last usable host
	TotalHosts int64
}

// Parse validates cidr ("a.b.c.d/n") and computes its usable range.
// Prefixes shorter than /31 exclude the network and broadcast
// addresses; /31 uses both addresses and /32 the single address.
func Parse(cidr string) (*Range, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return nil, errdefs.Validationf("subnet.Parse", "invalid CIDR %q: %v", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, errdefs.Validationf("subnet.Parse", "CIDR %q is not IPv4", cidr)
	}
	prefix = prefix.Masked()
	bits := prefix.Bits()

	network := toUint32(prefix.Addr())
	size := uint64(1) << uint(32-bits)
	broadcast := uint32(uint64(network) + size - 1)

	r := &Range{
		Prefix:    prefix,
		Network:   fromUint32(network),
		Broadcast: fromUint32(broadcast),
	}
	switch {
	case bits == 32:
		r.First, r.Last, r.TotalHosts = r.Network, r.Network, 1
	case bits == 31:
		r.First, r.Last, r.TotalHosts = r.Network, r.Broadcast, 2
	default:
		r.First = fromUint32(network + 1)
		r.Last = fromUint32(broadcast - 1)
		r.TotalHosts = int64(size) - 2
	}
	return r, nil
}

// String renders the range as "first-last (n hosts)".
func (r *Range) String() string {
	return fmt.Sprintf("%s-%s (%d hosts)", r.First, r.Last, r.TotalHosts)
}

// Contains reports whether ip falls inside the usable host range.
func (r *Range) Contains(ip netip.Addr) bool {
	if !ip.Is4() {
		return false
	}
	v := toUint32(ip)
	return v >= toUint32(r.First) && v <= toUint32(r.Last)
}

// Sampled reports whether ScanPlan(limit) would skip addresses.
func (r *Range) Sampled(limit int) bool {
	if limit <= 0 {
		limit = DefaultScanCap
	}
	return r.TotalHosts > int64(limit)
}

// ScanPlan lists the addresses to probe. Every usable address is
// returned when the range fits in limit; otherwise exactly limit
// addresses spaced floor(TotalHosts/limit) apart, starting at First.
func (r *Range) ScanPlan(limit int) []string {
	if limit <= 0 {
		limit = DefaultScanCap
	}
	first := uint64(toUint32(r.First))

	if r.TotalHosts <= int64(limit) {
		plan := make([]string, 0, r.TotalHosts)
		for i := int64(0); i < r.TotalHosts; i++ {
			plan = append(plan, fromUint32(uint32(first+uint64(i))).String())
		}
		return plan
	}

	stride := uint64(r.TotalHosts) / uint64(limit)
	plan := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		plan = append(plan, fromUint32(uint32(first+uint64(i)*stride)).String())
	}
	return plan
}

// SameSubnet reports whether a and b share the first bits bits.
func SameSubnet(a, b netip.Addr, bits int) bool {
	if !a.Is4() || !b.Is4() || bits < 0 || bits > 32 {
		return false
	}
	pa, err := a.Prefix(bits)
	if err != nil {
		return false
	}
	return pa.Contains(b)
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func fromUint32(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
