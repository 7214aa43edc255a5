package localagent

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/mactable"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/snmp"
)

type fakeSession struct {
	get   map[string]string
	walks map[string][]snmp.Variable
	err   error
}

func (f *fakeSession) Get(oids ...string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, o := range oids {
		if v, ok := f.get[o]; ok {
			out[o] = v
		}
	}
	return out, nil
}

func (f *fakeSession) Walk(oid string) ([]snmp.Variable, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.walks[oid], nil
}

func (f *fakeSession) Close() error { return nil }

func newTestAgent(sessions map[string]*fakeSession) *Agent {
	a := New(filepath.Join(os.TempDir(), "netdisco-no-arp"))
	a.SetDialer(func(ctx context.Context, target agent.SNMPTarget, timeout time.Duration) (Session, error) {
		s, ok := sessions[target.Community]
		if !ok {
			return nil, errors.New("no route")
		}
		return s, nil
	})
	return a
}

var target = agent.SNMPTarget{IP: "10.0.0.2", Community: "public", Version: models.SNMPv2c}

func TestDiscoverDevice(t *testing.T) {
	a := newTestAgent(map[string]*fakeSession{"public": {get: map[string]string{
		snmp.OIDSysDescr:    "Cisco IOS Software, C3750E",
		snmp.OIDSysObjectID: "1.3.6.1.4.1.9.1.1208",
		snmp.OIDSysName:     "core-sw1",
	}}})
	a.SetIdentifier(func(descr, oid string) (string, string, string) {
		return "Cisco", "C3750E", "Switch"
	})

	resp, err := a.DiscoverDevice(context.Background(), agent.DeviceRequest{SNMPTarget: target})
	require.NoError(t, err)
	assert.Equal(t, agent.DeviceInfo{
		SysName:      "core-sw1",
		Manufacturer: "Cisco",
		Model:        "C3750E",
		Type:         "Switch",
		SysDescr:     "Cisco IOS Software, C3750E",
		SysObjectID:  "1.3.6.1.4.1.9.1.1208",
	}, resp.Device)
}

func TestSNMPErrorsAreClassified(t *testing.T) {
	a := newTestAgent(map[string]*fakeSession{"public": {err: errors.New("request timeout")}})

	_, err := a.SNMPGet(context.Background(), agent.GetRequest{SNMPTarget: target, OIDs: []string{snmp.OIDSysName}})
	assert.True(t, errors.Is(err, errdefs.ErrProtocol))

	other := target
	other.Community = "private"
	_, err = a.SNMPWalk(context.Background(), agent.WalkRequest{SNMPTarget: other, OID: "1.3.6"})
	assert.True(t, errors.Is(err, errdefs.ErrConnectivity))

	bad := target
	bad.IP = "not-an-ip"
	_, err = a.SNMPGet(context.Background(), agent.GetRequest{SNMPTarget: bad})
	assert.True(t, errors.Is(err, errdefs.ErrValidation))
}

func TestDiscoverVlans_CiscoFallsBackToQBridge(t *testing.T) {
	a := newTestAgent(map[string]*fakeSession{"public": {walks: map[string][]snmp.Variable{
		OIDDot1qVlanStaticName: {
			{OID: OIDDot1qVlanStaticName + ".20", Value: "Users"},
			{OID: OIDDot1qVlanStaticName + ".1", Value: "default"},
			{OID: OIDDot1qVlanStaticName + ".4095", Value: "bogus"},
		},
	}}})

	resp, err := a.DiscoverVlans(context.Background(), agent.VlanRequest{SNMPTarget: target, Make: "Cisco"})
	require.NoError(t, err)
	require.Len(t, resp.Vlans, 2)
	assert.Equal(t, 1, resp.Vlans[0].VlanID)
	assert.Equal(t, "Users", resp.Vlans[1].Name)
}

func TestDiscoverVlans_CiscoVtp(t *testing.T) {
	a := newTestAgent(map[string]*fakeSession{"public": {walks: map[string][]snmp.Variable{
		OIDCiscoVtpVlanName: {{OID: OIDCiscoVtpVlanName + ".1.10", Value: "Management"}},
	}}})

	resp, err := a.DiscoverVlans(context.Background(), agent.VlanRequest{SNMPTarget: target, Make: "cisco"})
	require.NoError(t, err)
	require.Len(t, resp.Vlans, 1)
	assert.Equal(t, agent.VlanInfo{VlanID: 10, Name: "Management", UsedBy: []string{}}, resp.Vlans[0])
}

func TestDiscoverMacAddresses_UsesVlanContexts(t *testing.T) {
	a := newTestAgent(map[string]*fakeSession{
		"public": {walks: map[string][]snmp.Variable{
			mactable.OIDBridgeForwardingTable: {{OID: mactable.OIDBridgeForwardingTable + ".0.26.171.5.2.39", Value: "4"}},
		}},
		"public@30": {walks: map[string][]snmp.Variable{
			mactable.OIDBridgeForwardingTable: {{OID: mactable.OIDBridgeForwardingTable + ".0.80.86.1.2.3", Value: "9"}},
		}},
	})

	resp, err := a.DiscoverMacAddresses(context.Background(), agent.MacRequest{SNMPTarget: target, VlanIDs: []int{1, 20, 30}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 30}, resp.VlanIDs)
	assert.Equal(t, []agent.MacInfo{
		{MACAddress: "00:1A:AB:05:02:27", VlanID: 1, Port: "4"},
		{MACAddress: "00:50:56:01:02:03", VlanID: 30, Port: "9"},
	}, resp.MacAddresses)
}

func TestProbe_OpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	a := New(filepath.Join(t.TempDir(), "arp"))
	a.ProbePorts = []string{port}

	resp, err := a.Probe(context.Background(), agent.ProbeRequest{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.True(t, resp.Reachable)
	assert.Empty(t, resp.MACAddress)
}

func TestCLISessionsUnsupported(t *testing.T) {
	a := New("")
	_, err := a.Connect(context.Background(), agent.ConnectRequest{Method: models.MethodSSH, IP: "10.0.0.2"})
	assert.True(t, errors.Is(err, errdefs.ErrProtocol))
}
