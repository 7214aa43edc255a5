package vlan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/models"
)

// Vendor selects the CLI dialect used for VLAN retrieval.
type Vendor string

const (
	VendorCisco   Vendor = "cisco"
	VendorJuniper Vendor = "juniper"
	VendorHP      Vendor = "hp"
	VendorDefault Vendor = "default"
)

// VendorFor maps a manufacturer name onto a CLI dialect.
func VendorFor(manufacturer string) Vendor {
	m := strings.ToLower(manufacturer)
	switch {
	case strings.Contains(m, "cisco"):
		return VendorCisco
	case strings.Contains(m, "juniper"):
		return VendorJuniper
	case strings.Contains(m, "aruba"), strings.Contains(m, "hp"), strings.Contains(m, "hewlett"):
		return VendorHP
	default:
		return VendorDefault
	}
}

// Commands is the session sequence for v. The output of the last
// command is the VLAN listing.
func Commands(v Vendor) []string {
	switch v {
	case VendorCisco:
		return []string{"terminal length 0", "show vlan brief"}
	case VendorJuniper:
		return []string{"set cli screen-length 0", "show vlans detail"}
	case VendorHP:
		return []string{"no page", "show vlans"}
	default:
		return []string{"show vlan"}
	}
}

// Parsed is the outcome of parsing one VLAN listing. Ports on each VLAN
// holds the member interfaces reported by the device; UsedBy is left empty.
type Parsed struct {
	Vlans []models.DiscoveredVlan
	// Invalid lists ids outside 1..4094 that were dropped.
	Invalid []int
}

// Parse dispatches to the parser for v.
func Parse(v Vendor, text string) (*Parsed, error) {
	switch v {
	case VendorCisco:
		return ParseCisco(text)
	case VendorJuniper:
		return ParseJuniper(text)
	case VendorHP:
		return ParseHP(text)
	default:
		return ParseDefault(text)
	}
}

var (
	ciscoRow = regexp.MustCompile(`^(\d+)\s+(\S+)\s+(\S+)\s*(.*)$`)

	juniperName  = regexp.MustCompile(`VLAN(?: Name)?:\s+([^\s,]+)`)
	juniperTag   = regexp.MustCompile(`Tag:\s+(\d+)`)
	juniperIface = regexp.MustCompile(`(\S+\.\d+)`)

	hpRow = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s+`)

	defaultRow = regexp.MustCompile(`(\d+)\s+(\S+)`)
)

// collector keeps the first occurrence of every id and records invalid ones.
type collector struct {
	out   Parsed
	index map[int]int
}

func newCollector() *collector {
	return &collector{out: Parsed{Vlans: []models.DiscoveredVlan{}}, index: map[int]int{}}
}

// add returns the stored VLAN for id, or nil when id was rejected.
func (c *collector) add(idText, name string) *models.DiscoveredVlan {
	id, err := strconv.Atoi(idText)
	if err != nil {
		return nil
	}
	if !models.ValidVlanID(id) {
		c.out.Invalid = append(c.out.Invalid, id)
		return nil
	}
	if i, ok := c.index[id]; ok {
		return &c.out.Vlans[i]
	}
	c.index[id] = len(c.out.Vlans)
	c.out.Vlans = append(c.out.Vlans, models.DiscoveredVlan{
		VlanID:      id,
		Name:        name,
		SegmentName: name,
		UsedBy:      []string{},
	})
	return &c.out.Vlans[len(c.out.Vlans)-1]
}

func (c *collector) result(op string, matched bool) (*Parsed, error) {
	if !matched {
		return nil, errdefs.Parsef(op, "output does not look like a vlan listing")
	}
	return &c.out, nil
}

func splitPorts(s string) []string {
	var ports []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ports = append(ports, p)
		}
	}
	return ports
}

// ParseCisco reads `show vlan brief`. Rows follow the first dashed
// separator when there is one; indented lines continue the previous
// row's port list.
func ParseCisco(text string) (*Parsed, error) {
	c := newCollector()
	lines := strings.Split(text, "\n")
	matched := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "----") {
			lines = lines[i+1:]
			matched = true
			break
		}
	}

	var current *models.DiscoveredVlan
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := ciscoRow.FindStringSubmatch(line); m != nil {
			matched = true
			current = c.add(m[1], m[2])
			if current != nil {
				current.Ports = append(current.Ports, splitPorts(m[4])...)
			}
			continue
		}
		if current != nil && (line[0] == ' ' || line[0] == '\t') {
			current.Ports = append(current.Ports, splitPorts(line)...)
			continue
		}
		current = nil
	}
	return c.result("parse cisco vlans", matched)
}

// ParseJuniper reads `show vlans detail`, one VLAN per routing
// instance block.
func ParseJuniper(text string) (*Parsed, error) {
	c := newCollector()
	blocks := strings.Split(text, "Routing instance:")
	matched := false

	for _, block := range blocks[1:] {
		name := juniperName.FindStringSubmatch(block)
		tag := juniperTag.FindStringSubmatch(block)
		if name == nil || tag == nil {
			continue
		}
		matched = true
		v := c.add(tag[1], name[1])
		if v == nil {
			continue
		}
		for _, iface := range juniperIface.FindAllString(block, -1) {
			v.Ports = append(v.Ports, strings.TrimRight(iface, "*,"))
		}
	}
	return c.result("parse juniper vlans", matched)
}

// ParseHP reads `show vlans` on ProCurve/ArubaOS switches. The listing
// carries no port membership.
func ParseHP(text string) (*Parsed, error) {
	c := newCollector()
	matched := false
	for _, line := range strings.Split(text, "\n") {
		if m := hpRow.FindStringSubmatch(line); m != nil {
			matched = true
			c.add(m[1], m[2])
		}
	}
	return c.result("parse hp vlans", matched)
}

// ParseDefault takes the first "<number> <word>" pair on each line.
func ParseDefault(text string) (*Parsed, error) {
	c := newCollector()
	matched := false
	for _, line := range strings.Split(text, "\n") {
		if m := defaultRow.FindStringSubmatch(line); m != nil {
			matched = true
			c.add(m[1], m[2])
		}
	}
	return c.result("parse vlans", matched)
}
