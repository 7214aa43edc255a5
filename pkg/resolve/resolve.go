// Package resolve performs reverse DNS lookups used to name devices that
// do not report a sysName.
package resolve

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver sends PTR queries to a single DNS server.
type Resolver struct {
	Server  string // host:port
	Timeout time.Duration
}

// New creates a Resolver. An empty server uses the first nameserver from
// /etc/resolv.conf.
func New(server string, timeout time.Duration) (*Resolver, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("no dns server configured: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameserver in /etc/resolv.conf")
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Resolver{Server: server, Timeout: timeout}, nil
}

// LookupPTR returns the first PTR name for ip without the trailing dot.
func (r *Resolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("invalid address %s: %w", ip, err)
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	client := &dns.Client{Net: "udp", Timeout: r.Timeout}
	resp, _, err := client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return "", fmt.Errorf("ptr query for %s failed: %w", ip, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("ptr query for %s: %s", ip, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("no ptr record for %s", ip)
}
