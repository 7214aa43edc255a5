// Package localagent is an in-process Access Agent. SNMP goes straight
// out through gosnmp, reachability is a TCP connect sweep and MAC
// addresses come from the kernel ARP table. CLI sessions are not
// available locally; use a remote agent for SSH/Telnet.
package localagent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/arp"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/mactable"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/snmp"
)

// VLAN name tables.
const (
	OIDCiscoVtpVlanName    = "1.3.6.1.4.1.9.9.46.1.3.1.1.4"
	OIDDot1qVlanStaticName = "1.3.6.1.2.1.17.7.1.4.3.1.1"
)

// DefaultProbePorts are tried in order; the first answer wins.
var DefaultProbePorts = []string{"22", "443", "80", "23", "8080"}

// Session is the part of the SNMP client the agent uses.
type Session interface {
	Get(oids ...string) (map[string]string, error)
	Walk(oid string) ([]snmp.Variable, error)
	Close() error
}

// Dialer opens an SNMP session to target.
type Dialer func(ctx context.Context, target agent.SNMPTarget, timeout time.Duration) (Session, error)

// Identifier derives manufacturer, model and type from system MIB values.
type Identifier func(sysDescr, sysObjectID string) (manufacturer, model, deviceType string)

// Agent implements agent.Agent without a remote service.
type Agent struct {
	ProbePorts  []string
	DialTimeout time.Duration
	SNMPTimeout time.Duration

	arp      *arp.Table
	dial     Dialer
	identify Identifier
	logger   func(string)
	mutex    sync.RWMutex
}

// New creates a local agent reading MACs from arpPath (DefaultPath when empty).
func New(arpPath string) *Agent {
	return &Agent{
		ProbePorts:  DefaultProbePorts,
		DialTimeout: 500 * time.Millisecond,
		SNMPTimeout: 5 * time.Second,
		arp:         arp.NewTable(arpPath),
		dial:        dialSNMP,
		logger:      func(msg string) {},
	}
}

// SetDialer replaces the SNMP session factory.
func (a *Agent) SetDialer(d Dialer) {
	if d != nil {
		a.dial = d
	}
}

// SetIdentifier sets the hook used by DiscoverDevice to fill in
// manufacturer, model and type.
func (a *Agent) SetIdentifier(id Identifier) {
	a.identify = id
}

// SetLogger sets a custom logger function in a thread-safe manner
func (a *Agent) SetLogger(logger func(string)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if logger != nil {
		a.logger = logger
	} else {
		a.logger = func(msg string) {}
	}
}

func (a *Agent) log(format string, args ...interface{}) {
	a.mutex.RLock()
	logger := a.logger
	a.mutex.RUnlock()
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
	}
}

func dialSNMP(ctx context.Context, target agent.SNMPTarget, timeout time.Duration) (Session, error) {
	c := snmp.NewClient(target.IP, target.Community, target.Version)
	c.Timeout = timeout
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *Agent) session(ctx context.Context, op string, target agent.SNMPTarget) (Session, error) {
	if net.ParseIP(target.IP) == nil {
		return nil, errdefs.Validationf(op, "invalid IP address %q", target.IP)
	}
	s, err := a.dial(ctx, target, a.SNMPTimeout)
	if err != nil {
		return nil, errdefs.Connectivity(op, err)
	}
	return s, nil
}

// Health always succeeds; there is no remote side to lose.
func (a *Agent) Health(ctx context.Context) error {
	return ctx.Err()
}

// Probe reports a host reachable when any probe port accepts or actively
// refuses a TCP connection.
func (a *Agent) Probe(ctx context.Context, req agent.ProbeRequest) (*agent.ProbeResponse, error) {
	if net.ParseIP(req.IP) == nil {
		return nil, errdefs.Validationf("probe", "invalid IP address %q", req.IP)
	}

	dialer := net.Dialer{Timeout: a.DialTimeout}
	resp := &agent.ProbeResponse{}
	for _, port := range a.ProbePorts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(req.IP, port))
		if err == nil {
			conn.Close()
			resp.Reachable = true
			break
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			resp.Reachable = true
			break
		}
	}

	if resp.Reachable {
		mac, err := a.arp.Lookup(req.IP)
		if err != nil {
			a.log("%s: arp lookup failed: %v", req.IP, err)
		}
		resp.MACAddress = mac
	}
	return resp, nil
}

func (a *Agent) SNMPGet(ctx context.Context, req agent.GetRequest) (*agent.GetResponse, error) {
	s, err := a.session(ctx, "snmp get", req.SNMPTarget)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	results, err := s.Get(req.OIDs...)
	if err != nil {
		return nil, errdefs.Protocol("snmp get", err)
	}
	return &agent.GetResponse{Results: results}, nil
}

func (a *Agent) SNMPWalk(ctx context.Context, req agent.WalkRequest) (*agent.WalkResponse, error) {
	s, err := a.session(ctx, "snmp walk", req.SNMPTarget)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	vars, err := s.Walk(req.OID)
	if err != nil {
		return nil, errdefs.Protocol("snmp walk", err)
	}
	resp := &agent.WalkResponse{Results: make([]agent.WalkResult, 0, len(vars))}
	for _, v := range vars {
		resp.Results = append(resp.Results, agent.WalkResult{OID: v.OID, Value: v.Value})
	}
	return resp, nil
}

// DiscoverDevice reads the system group and, when an Identifier is set,
// derives manufacturer, model and type from it.
func (a *Agent) DiscoverDevice(ctx context.Context, req agent.DeviceRequest) (*agent.DeviceResponse, error) {
	s, err := a.session(ctx, "snmp discover device", req.SNMPTarget)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	values, err := s.Get(snmp.OIDSysDescr, snmp.OIDSysObjectID, snmp.OIDSysName)
	if err != nil {
		return nil, errdefs.Protocol("snmp discover device", err)
	}
	info := agent.DeviceInfo{
		SysName:     values[snmp.OIDSysName],
		SysDescr:    values[snmp.OIDSysDescr],
		SysObjectID: values[snmp.OIDSysObjectID],
	}
	if a.identify != nil {
		info.Manufacturer, info.Model, info.Type = a.identify(info.SysDescr, info.SysObjectID)
	}
	return &agent.DeviceResponse{Device: info}, nil
}

// DiscoverVlans walks the Cisco VTP table for Cisco devices and the
// Q-BRIDGE static name table for everything else, or when the VTP
// table is empty.
func (a *Agent) DiscoverVlans(ctx context.Context, req agent.VlanRequest) (*agent.VlanResponse, error) {
	s, err := a.session(ctx, "snmp discover vlans", req.SNMPTarget)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var vars []snmp.Variable
	if strings.Contains(strings.ToLower(req.Make), "cisco") {
		vars, err = s.Walk(OIDCiscoVtpVlanName)
		if err != nil {
			a.log("%s: vtp vlan walk failed: %v", req.IP, err)
		}
	}
	if len(vars) == 0 {
		vars, err = s.Walk(OIDDot1qVlanStaticName)
		if err != nil {
			return nil, errdefs.Protocol("snmp discover vlans", err)
		}
	}

	resp := &agent.VlanResponse{Vlans: []agent.VlanInfo{}}
	for _, v := range vars {
		id, ok := lastSubID(v.OID)
		if !ok || !models.ValidVlanID(id) {
			a.log("%s: skipping vlan row %s", req.IP, v.OID)
			continue
		}
		resp.Vlans = append(resp.Vlans, agent.VlanInfo{VlanID: id, Name: v.Value, UsedBy: []string{}})
	}
	sort.Slice(resp.Vlans, func(i, j int) bool { return resp.Vlans[i].VlanID < resp.Vlans[j].VlanID })
	return resp, nil
}

// DiscoverMacAddresses walks the bridge forwarding table once per VLAN
// context. A failed VLAN is logged and left out of VlanIDs.
func (a *Agent) DiscoverMacAddresses(ctx context.Context, req agent.MacRequest) (*agent.MacResponse, error) {
	resp := &agent.MacResponse{MacAddresses: []agent.MacInfo{}, VlanIDs: []int{}}
	for _, id := range req.VlanIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := req.SNMPTarget
		target.Community = mactable.VlanCommunity(req.Community, id)

		s, err := a.session(ctx, "snmp discover mac addresses", target)
		if err != nil {
			a.log("%s: vlan %d: %v", req.IP, id, err)
			continue
		}
		vars, err := s.Walk(mactable.OIDBridgeForwardingTable)
		s.Close()
		if err != nil {
			a.log("%s: vlan %d: bridge walk failed: %v", req.IP, id, err)
			continue
		}

		for _, v := range vars {
			mac, ok := mactable.DecodeBridgeOID(v.OID)
			if !ok {
				continue
			}
			resp.MacAddresses = append(resp.MacAddresses, agent.MacInfo{MACAddress: mac, VlanID: id, Port: v.Value})
		}
		resp.VlanIDs = append(resp.VlanIDs, id)
	}
	return resp, nil
}

var errNoCLI = errors.New("cli sessions are not supported by the local agent")

func (a *Agent) Connect(ctx context.Context, req agent.ConnectRequest) (*agent.ConnectResponse, error) {
	return nil, errdefs.Protocol(string(req.Method)+" connect", errNoCLI)
}

func (a *Agent) Execute(ctx context.Context, req agent.ExecuteRequest) (*agent.ExecuteResponse, error) {
	return nil, errdefs.Protocol(string(req.Method)+" execute", errNoCLI)
}

func (a *Agent) Disconnect(ctx context.Context, req agent.DisconnectRequest) error {
	return nil
}

func lastSubID(oid string) (int, bool) {
	i := strings.LastIndexByte(oid, '.')
	if i < 0 || i == len(oid)-1 {
		return 0, false
	}
	id, err := strconv.Atoi(oid[i+1:])
	return id, err == nil
}

var _ agent.Agent = (*Agent)(nil)
