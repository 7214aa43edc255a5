package vlan

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/agent/mocks"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/progress"
)

func sw(ip, name, make string) Switch {
	return Switch{
		SNMPTarget:   agent.SNMPTarget{IP: ip, Community: "public", Version: models.SNMPv2c},
		Name:         name,
		Manufacturer: make,
	}
}

var cliConfig = CLIConfig{
	Methods:     []models.ConnectionMethod{models.MethodSSH, models.MethodTelnet},
	Credentials: agent.Credentials{Username: "admin", Password: "secret"},
}

func TestMerge_UnionsUsedBy(t *testing.T) {
	merged := Merge(
		[]models.DiscoveredVlan{{VlanID: 20, Name: "Users", UsedBy: []string{"SW1"}}},
		[]models.DiscoveredVlan{{VlanID: 20, Name: "users-2", UsedBy: []string{"SW2"}}},
		[]models.DiscoveredVlan{{VlanID: 20, UsedBy: []string{"SW1"}}, {VlanID: 4095, UsedBy: []string{"SW3"}}},
	)
	require.Len(t, merged, 1)
	assert.Equal(t, 20, merged[0].VlanID)
	assert.Equal(t, "Users", merged[0].Name)
	assert.Equal(t, "Users", merged[0].SegmentName)
	assert.Equal(t, []string{"SW1", "SW2"}, merged[0].UsedBy)
}

func TestMerge_SortedAndIdempotent(t *testing.T) {
	in := []models.DiscoveredVlan{
		{VlanID: 30, Name: "c", UsedBy: []string{"A"}},
		{VlanID: 1, Name: "a", UsedBy: []string{"A"}},
		{VlanID: 10, Name: "b", UsedBy: []string{"A"}},
	}
	first := Merge(in)
	second := Merge(in)
	assert.Equal(t, first, second)
	assert.Equal(t, []int{1, 10, 30}, []int{first[0].VlanID, first[1].VlanID, first[2].VlanID})

	again := Merge(first)
	assert.Equal(t, first, again)
}

func TestDiscover_SNMPPathAcrossSwitches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)

	sw1 := sw("10.0.0.2", "SW1", "Cisco")
	sw2 := sw("10.0.0.3", "", "Arista")

	m.EXPECT().DiscoverVlans(gomock.Any(), agent.VlanRequest{SNMPTarget: sw1.SNMPTarget, Make: "Cisco"}).Return(&agent.VlanResponse{Vlans: []agent.VlanInfo{
		{VlanID: 20, Name: "Users", UsedBy: []string{"SW1", "core-1", "10.0.0.2"}},
		{VlanID: 1, Name: "default"},
		{VlanID: 0, Name: "bad"},
	}}, nil)
	m.EXPECT().DiscoverVlans(gomock.Any(), agent.VlanRequest{SNMPTarget: sw2.SNMPTarget, Make: "Arista"}).Return(&agent.VlanResponse{Vlans: []agent.VlanInfo{
		{VlanID: 20, Name: "USERS", Subnet: "10.20.0.0/24"},
		{VlanID: 30, Name: "Voice"},
	}}, nil)

	ch := make(chan progress.Event, 4)
	d := NewDiscoverer(m, cliConfig)
	res, err := d.Discover(context.Background(), []Switch{sw1, sw2}, progress.NewReporter(ch, "r"))
	require.NoError(t, err)

	require.Len(t, res.Vlans, 3)
	assert.Equal(t, []int{1, 20, 30}, []int{res.Vlans[0].VlanID, res.Vlans[1].VlanID, res.Vlans[2].VlanID})
	assert.Equal(t, "Users", res.Vlans[1].Name)
	assert.Empty(t, res.Vlans[1].Subnet)
	assert.Equal(t, []string{"SW1", "core-1", "10.0.0.3"}, res.Vlans[1].UsedBy)
	assert.Empty(t, res.Vlans[1].Ports)

	require.Len(t, res.Switches, 2)
	assert.Equal(t, PathSNMP, res.Switches[0].Path)
	assert.Equal(t, []int{1, 20}, res.Switches[0].VlanIDs)
	assert.Equal(t, []int{20, 30}, res.Switches[1].VlanIDs)
	assert.Len(t, res.Warnings, 1)
	assert.Len(t, ch, 2)
}

func TestDiscover_SNMPRepeatedIDsKeepFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)

	s := sw("10.0.0.2", "SW1", "Cisco")
	m.EXPECT().DiscoverVlans(gomock.Any(), gomock.Any()).Return(&agent.VlanResponse{Vlans: []agent.VlanInfo{
		{VlanID: 10, Name: "Mgmt"},
		{VlanID: 20, Name: "Users"},
		{VlanID: 10, Name: "Mgmt-domain2"},
	}}, nil)

	res, err := NewDiscoverer(m, cliConfig).Discover(context.Background(), []Switch{s}, nil)
	require.NoError(t, err)
	require.Len(t, res.Switches, 1)
	assert.Equal(t, []int{10, 20}, res.Switches[0].VlanIDs)
	require.Len(t, res.Vlans, 2)
	assert.Equal(t, "Mgmt", res.Vlans[0].Name)
	assert.Empty(t, res.Warnings)
}

func TestDiscover_CLIFallbackClosesSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)

	s := sw("10.0.0.2", "SW1", "Cisco")
	m.EXPECT().DiscoverVlans(gomock.Any(), gomock.Any()).Return(nil, errdefs.Protocolf("snmp discover vlans", "timeout"))

	gomock.InOrder(
		m.EXPECT().Connect(gomock.Any(), agent.ConnectRequest{Method: models.MethodSSH, IP: "10.0.0.2", Credentials: cliConfig.Credentials}).
			Return(nil, errdefs.Connectivity("ssh connect", errors.New("refused"))),
		m.EXPECT().Connect(gomock.Any(), agent.ConnectRequest{Method: models.MethodTelnet, IP: "10.0.0.2", Credentials: cliConfig.Credentials}).
			Return(&agent.ConnectResponse{SessionID: "s-1"}, nil),
		m.EXPECT().Execute(gomock.Any(), agent.ExecuteRequest{Method: models.MethodTelnet, SessionID: "s-1", Command: "terminal length 0"}).
			Return(&agent.ExecuteResponse{}, nil),
		m.EXPECT().Execute(gomock.Any(), agent.ExecuteRequest{Method: models.MethodTelnet, SessionID: "s-1", Command: "show vlan brief"}).
			Return(&agent.ExecuteResponse{Output: ciscoBrief}, nil),
		m.EXPECT().Disconnect(gomock.Any(), agent.DisconnectRequest{Method: models.MethodTelnet, SessionID: "s-1"}).Return(nil),
	)

	res, err := NewDiscoverer(m, cliConfig).Discover(context.Background(), []Switch{s}, nil)
	require.NoError(t, err)
	require.Len(t, res.Vlans, 4)
	assert.Equal(t, PathCLI, res.Switches[0].Path)
	assert.Equal(t, []string{"SW1"}, res.Vlans[1].UsedBy)
	assert.Equal(t, []string{"Gi0/3", "Gi0/4"}, res.Vlans[1].Ports)
	assert.Len(t, res.Warnings, 1) // 4095 dropped
}

func TestDiscover_ExecuteFailureStillDisconnects(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)

	s := sw("10.0.0.2", "SW1", "Juniper")
	cfg := CLIConfig{Methods: []models.ConnectionMethod{models.MethodSSH}}

	m.EXPECT().DiscoverVlans(gomock.Any(), gomock.Any()).Return(&agent.VlanResponse{}, nil)
	m.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(&agent.ConnectResponse{SessionID: "s-9"}, nil)
	m.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, errdefs.Protocolf("ssh execute", "timeout"))
	m.EXPECT().Disconnect(gomock.Any(), agent.DisconnectRequest{Method: models.MethodSSH, SessionID: "s-9"}).Return(nil)

	res, err := NewDiscoverer(m, cfg).Discover(context.Background(), []Switch{s}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Vlans)
	require.Len(t, res.Switches, 1)
	assert.Error(t, res.Switches[0].Err)
	assert.Empty(t, res.Switches[0].VlanIDs)
	assert.Len(t, res.Warnings, 1)
}

func TestDiscover_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := mocks.NewMockAgent(ctrl)

	m.EXPECT().DiscoverVlans(gomock.Any(), gomock.Any()).Return(&agent.VlanResponse{Vlans: []agent.VlanInfo{
		{VlanID: 30, Name: "c"}, {VlanID: 10, Name: "a"}, {VlanID: 20, Name: "b"},
	}}, nil).Times(2)

	d := NewDiscoverer(m, cliConfig)
	first, err := d.Discover(context.Background(), []Switch{sw("10.0.0.2", "SW1", "")}, nil)
	require.NoError(t, err)
	second, err := d.Discover(context.Background(), []Switch{sw("10.0.0.2", "SW1", "")}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Vlans, second.Vlans)
}
