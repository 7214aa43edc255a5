// Package models defines the records produced by a discovery run.
package models

import (
	"fmt"
	"strings"
)

// VLAN id bounds (802.1Q, 0 and 4095 reserved).
const (
	MinVlanID = 1
	MaxVlanID = 4094
)

// DeviceCategory is the coarse role of a discovered device.
type DeviceCategory string

const (
	CategorySwitch     DeviceCategory = "Switch"
	CategoryRouter     DeviceCategory = "Router"
	CategoryAP         DeviceCategory = "AP"
	CategoryController DeviceCategory = "Controller"
	CategoryFirewall   DeviceCategory = "Firewall"
	CategoryServer     DeviceCategory = "Server"
	CategoryOther      DeviceCategory = "Other"
)

// ParseCategory maps a free-form category name onto a DeviceCategory.
func ParseCategory(s string) (DeviceCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "switch":
		return CategorySwitch, true
	case "router":
		return CategoryRouter, true
	case "ap", "access_point", "access point", "wireless":
		return CategoryAP, true
	case "controller", "wireless_controller", "wlc":
		return CategoryController, true
	case "firewall":
		return CategoryFirewall, true
	case "server":
		return CategoryServer, true
	case "other":
		return CategoryOther, true
	}
	return CategoryOther, false
}

// DeviceStatus reflects the reachability observed during the run.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
	StatusUnknown DeviceStatus = "unknown"
)

// ConnectionMethod selects how the Access Agent reaches a device.
type ConnectionMethod string

const (
	MethodSNMP   ConnectionMethod = "snmp"
	MethodSSH    ConnectionMethod = "ssh"
	MethodTelnet ConnectionMethod = "telnet"
)

// ParseConnectionMethod accepts "ssh", "telnet" or "snmp" in any case.
func ParseConnectionMethod(s string) (ConnectionMethod, error) {
	switch ConnectionMethod(strings.ToLower(strings.TrimSpace(s))) {
	case MethodSNMP:
		return MethodSNMP, nil
	case MethodSSH:
		return MethodSSH, nil
	case MethodTelnet:
		return MethodTelnet, nil
	}
	return "", fmt.Errorf("unknown connection method %q", s)
}

// SNMPVersion is the community-based SNMP protocol version.
type SNMPVersion string

const (
	SNMPv1  SNMPVersion = "1"
	SNMPv2c SNMPVersion = "2c"
)

// ParseSNMPVersion accepts "1", "v1", "2", "2c", "v2c".
func ParseSNMPVersion(s string) (SNMPVersion, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "v")) {
	case "1":
		return SNMPv1, nil
	case "2", "2c", "":
		return SNMPv2c, nil
	}
	return "", fmt.Errorf("unsupported SNMP version %q", s)
}

// DiscoveredDevice is one probed host.
type DiscoveredDevice struct {
	IPAddress         string         `json:"ip_address"`
	MACAddress        string         `json:"mac_address,omitempty"`
	Hostname          string         `json:"hostname,omitempty"`
	Manufacturer      string         `json:"manufacturer,omitempty"`
	Model             string         `json:"model,omitempty"`
	Category          DeviceCategory `json:"category"`
	Status            DeviceStatus   `json:"status"`
	NeedsVerification bool           `json:"needs_verification"`
	SysDescr          string         `json:"sys_descr,omitempty"`
	SysObjectID       string         `json:"sys_object_id,omitempty"`
	IsRouted          bool           `json:"is_routed,omitempty"`
}

// Identifier is the name other records use to refer to the device.
func (d *DiscoveredDevice) Identifier() string {
	if d.Hostname != "" {
		return d.Hostname
	}
	return d.IPAddress
}

// UpdateVerification recomputes NeedsVerification from the identity fields.
func (d *DiscoveredDevice) UpdateVerification() {
	d.NeedsVerification = d.Manufacturer == "" || d.Model == "" || d.Hostname == ""
}

// DiscoveredVlan is a VLAN seen on one or more switches.
type DiscoveredVlan struct {
	VlanID      int      `json:"vlan_id"`
	Name        string   `json:"name"`
	SegmentName string   `json:"segment_name"`
	Subnet      string   `json:"subnet,omitempty"`
	UsedBy      []string `json:"used_by"`
	Ports       []string `json:"ports,omitempty"`
}

// MacAddressEntry is one learned address from a switch forwarding table.
type MacAddressEntry struct {
	MACAddress string `json:"mac_address"`
	VlanID     int    `json:"vlan_id"`
	DeviceType string `json:"device_type"`
	Port       string `json:"port,omitempty"`
	Switch     string `json:"switch,omitempty"`
}

// ValidVlanID reports whether id is inside 1..4094.
func ValidVlanID(id int) bool {
	return id >= MinVlanID && id <= MaxVlanID
}

// NormalizeMAC returns the canonical XX:XX:XX:XX:XX:XX form of a MAC
// written with ':', '-', '.' or no separators. ok is false when the
// input does not hold exactly twelve hex digits.
func NormalizeMAC(s string) (string, bool) {
	hex := CompactMAC(s)
	if len(hex) != 12 {
		return "", false
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	return b.String(), true
}

// CompactMAC strips separators and upper-cases the hex digits. Any
// non-hex character yields "".
func CompactMAC(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == ':' || r == '-' || r == '.' || r == ' ':
			continue
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 'a' + 'A')
		default:
			return ""
		}
	}
	return b.String()
}
