// Package agent defines the Device Access Agent boundary. The agent
// performs the actual SNMP, SSH and Telnet I/O; the discovery engine
// only talks to it through this request/response API.
package agent

import (
	"context"

	"github.com/scottpeterman/netdisco/pkg/models"
)

//go:generate mockgen -source=agent.go -destination=mocks/mock_agent.go -package=mocks

// Agent is the set of operations the engine needs from an Access Agent.
type Agent interface {
	// Health fails when the agent cannot serve requests at all.
	Health(ctx context.Context) error

	Probe(ctx context.Context, req ProbeRequest) (*ProbeResponse, error)

	SNMPGet(ctx context.Context, req GetRequest) (*GetResponse, error)
	SNMPWalk(ctx context.Context, req WalkRequest) (*WalkResponse, error)
	DiscoverDevice(ctx context.Context, req DeviceRequest) (*DeviceResponse, error)
	DiscoverVlans(ctx context.Context, req VlanRequest) (*VlanResponse, error)
	DiscoverMacAddresses(ctx context.Context, req MacRequest) (*MacResponse, error)

	Connect(ctx context.Context, req ConnectRequest) (*ConnectResponse, error)
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error)
	Disconnect(ctx context.Context, req DisconnectRequest) error
}

// SNMPTarget addresses one SNMP agent with community credentials.
type SNMPTarget struct {
	IP        string             `json:"ip"`
	Community string             `json:"community"`
	Version   models.SNMPVersion `json:"version"`
}

type ProbeRequest struct {
	IP string `json:"ip"`
}

type ProbeResponse struct {
	Reachable  bool   `json:"reachable"`
	MACAddress string `json:"macAddress,omitempty"`
}

type GetRequest struct {
	SNMPTarget
	OIDs []string `json:"oids"`
}

// GetResponse maps each requested OID to its formatted value. OIDs the
// device did not answer are absent.
type GetResponse struct {
	Results map[string]string `json:"results"`
}

type WalkRequest struct {
	SNMPTarget
	OID string `json:"oid"`
}

type WalkResult struct {
	OID   string `json:"oid"`
	Value string `json:"value"`
}

type WalkResponse struct {
	Results []WalkResult `json:"results"`
}

type DeviceRequest struct {
	SNMPTarget
}

type DeviceInfo struct {
	SysName      string `json:"sysName"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Type         string `json:"type"`
	SysDescr     string `json:"sysDescr"`
	SysObjectID  string `json:"sysObjectID,omitempty"`
}

type DeviceResponse struct {
	Device DeviceInfo `json:"device"`
}

type VlanRequest struct {
	SNMPTarget
	Make string `json:"make"`
}

type VlanInfo struct {
	VlanID int      `json:"vlanId"`
	Name   string   `json:"name"`
	Subnet string   `json:"subnet,omitempty"`
	UsedBy []string `json:"usedBy"`
}

type VlanResponse struct {
	Vlans []VlanInfo `json:"vlans"`
}

type MacRequest struct {
	SNMPTarget
	VlanIDs []int `json:"vlanIds"`
}

type MacInfo struct {
	MACAddress string `json:"macAddress"`
	VlanID     int    `json:"vlanId"`
	Port       string `json:"port,omitempty"`
}

type MacResponse struct {
	MacAddresses []MacInfo `json:"macAddresses"`
	VlanIDs      []int     `json:"vlanIds"`
}

// Credentials are passed through to the agent untouched.
type Credentials struct {
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	EnablePassword string `json:"enablePassword,omitempty"`
}

type ConnectRequest struct {
	Method models.ConnectionMethod `json:"-"`
	IP     string                  `json:"ip"`
	Port   int                     `json:"port,omitempty"`
	Credentials
}

type ConnectResponse struct {
	SessionID string `json:"sessionId"`
}

type ExecuteRequest struct {
	Method    models.ConnectionMethod `json:"-"`
	SessionID string                  `json:"sessionId"`
	Command   string                  `json:"command"`
}

type ExecuteResponse struct {
	Output string `json:"output"`
}

type DisconnectRequest struct {
	Method    models.ConnectionMethod `json:"-"`
	SessionID string                  `json:"sessionId"`
}
