package vlan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
)

func TestParseCisco_SingleRow(t *testing.T) {
	p, err := ParseCisco("10   Management                       active    Gi0/3, Gi0/4")
	require.NoError(t, err)
	require.Len(t, p.Vlans, 1)
	assert.Equal(t, 10, p.Vlans[0].VlanID)
	assert.Equal(t, "Management", p.Vlans[0].Name)
	assert.Equal(t, []string{"Gi0/3", "Gi0/4"}, p.Vlans[0].Ports)
	assert.Empty(t, p.Vlans[0].UsedBy)
}

const ciscoBrief = `
VLAN Name                             Status    Ports
---- -------------------------------- --------- -------------------------------
1    default                          active    Gi0/1, Gi0/2
10   Management                       active    Gi0/3, Gi0/4
20   Users                            active    Gi0/5, Gi0/6, Gi0/7,
                                                Gi0/8
1002 fddi-default                     act/unsup
4095 bogus                            active
`

func TestParseCisco_Table(t *testing.T) {
	p, err := ParseCisco(ciscoBrief)
	require.NoError(t, err)

	ids := make([]int, 0, len(p.Vlans))
	for _, v := range p.Vlans {
		ids = append(ids, v.VlanID)
	}
	assert.Equal(t, []int{1, 10, 20, 1002}, ids)
	assert.Equal(t, []string{"Gi0/5", "Gi0/6", "Gi0/7", "Gi0/8"}, p.Vlans[2].Ports)
	assert.Empty(t, p.Vlans[3].Ports)
	assert.Equal(t, "Users", p.Vlans[2].SegmentName)
	assert.Equal(t, []int{4095}, p.Invalid)
}

func TestParseJuniper(t *testing.T) {
	text := `
Routing instance: default-switch
  VLAN Name: v10                            State: Active
  Tag: 10
  Internal index: 2, Generation Index: 2, Origin: Static
  Interfaces:
    ge-0/0/1.0*,untagged,access
    ge-0/0/2.0,untagged,access

Routing instance: default-switch
  VLAN Name: voice                          State: Active
  Tag: 30
  Interfaces:
    ge-0/0/5.0*,tagged,trunk

Routing instance: default-switch
  VLAN Name: broken                         State: Active
  Tag: 0
`
	p, err := ParseJuniper(text)
	require.NoError(t, err)
	require.Len(t, p.Vlans, 2)
	assert.Equal(t, models.DiscoveredVlan{
		VlanID:      10,
		Name:        "v10",
		SegmentName: "v10",
		UsedBy:      []string{},
		Ports:       []string{"ge-0/0/1.0", "ge-0/0/2.0"},
	}, p.Vlans[0])
	assert.Equal(t, 30, p.Vlans[1].VlanID)
	assert.Equal(t, []int{0}, p.Invalid)
}

func TestParseHP(t *testing.T) {
	text := `
 Status and Counters - VLAN Information

  Maximum VLANs to support : 256
  Primary VLAN : DEFAULT_VLAN

  VLAN ID Name                             | Status     Voice Jumbo
  ------- -------------------------------- + ---------- ----- -----
  1       DEFAULT_VLAN                     | Port-based No    No
  20      Users                            | Port-based No    No
`
	p, err := ParseHP(text)
	require.NoError(t, err)
	require.Len(t, p.Vlans, 2)
	assert.Equal(t, "DEFAULT_VLAN", p.Vlans[0].Name)
	assert.Equal(t, 20, p.Vlans[1].VlanID)
	assert.Empty(t, p.Vlans[1].Ports)
}

func TestParseDefault(t *testing.T) {
	p, err := ParseDefault("vlan 5 servers\nvlan 6 printers\n")
	require.NoError(t, err)
	require.Len(t, p.Vlans, 2)
	assert.Equal(t, "servers", p.Vlans[0].Name)
}

func TestParse_UnrecognisedOutput(t *testing.T) {
	for _, v := range []Vendor{VendorCisco, VendorJuniper, VendorHP, VendorDefault} {
		_, err := Parse(v, "% Invalid input detected at '^' marker.")
		require.Error(t, err, v)
		assert.True(t, errors.Is(err, errdefs.ErrParse), v)
	}
}

func TestVendorForAndCommands(t *testing.T) {
	assert.Equal(t, VendorCisco, VendorFor("Cisco"))
	assert.Equal(t, VendorJuniper, VendorFor("Juniper"))
	assert.Equal(t, VendorHP, VendorFor("Aruba"))
	assert.Equal(t, VendorHP, VendorFor("HP"))
	assert.Equal(t, VendorDefault, VendorFor("Arista"))

	assert.Equal(t, []string{"terminal length 0", "show vlan brief"}, Commands(VendorCisco))
	assert.Equal(t, []string{"set cli screen-length 0", "show vlans detail"}, Commands(VendorJuniper))
	assert.Equal(t, []string{"no page", "show vlans"}, Commands(VendorHP))
	assert.Equal(t, []string{"show vlan"}, Commands(VendorDefault))
}
