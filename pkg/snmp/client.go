package snmp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode"

	"github.com/gosnmp/gosnmp"

	"github.com/scottpeterman/netdisco/pkg/models"
)

// Well-known MIB-II system OIDs.
const (
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysObjectID = "1.3.6.1.2.1.1.2.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
)

// Client represents an SNMP session to one agent
type Client struct {
	Target    string
	Port      uint16
	Community string
	Version   models.SNMPVersion
	Timeout   time.Duration
	Retries   int

	conn *gosnmp.GoSNMP
}

// NewClient creates a new SNMP client with default settings
func NewClient(target, community string, version models.SNMPVersion) *Client {
	if community == "" {
		community = "public"
	}
	if version == "" {
		version = models.SNMPv2c
	}
	return &Client{
		Target:    target,
		Port:      161,
		Community: community,
		Version:   version,
		Timeout:   time.Second * 5,
		Retries:   1,
	}
}

// Connect opens the UDP socket. ctx bounds every later request.
func (c *Client) Connect(ctx context.Context) error {
	if net.ParseIP(c.Target) == nil {
		return fmt.Errorf("invalid IP address: %s", c.Target)
	}

	version := gosnmp.Version2c
	if c.Version == models.SNMPv1 {
		version = gosnmp.Version1
	}

	c.conn = &gosnmp.GoSNMP{
		Target:             c.Target,
		Port:               c.Port,
		Community:          c.Community,
		Version:            version,
		Timeout:            c.Timeout,
		Retries:            c.Retries,
		Context:            ctx,
		MaxOids:            gosnmp.MaxOids,
		ExponentialTimeout: true,
	}

	if err := c.conn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", c.Target, c.Port, err)
	}
	return nil
}

// Close closes the SNMP connection
func (c *Client) Close() error {
	if c.conn != nil && c.conn.Conn != nil {
		return c.conn.Conn.Close()
	}
	return nil
}

// Get performs an SNMP GET for oids. Missing objects are left out of
// the result instead of failing the whole request.
func (c *Client) Get(oids ...string) (map[string]string, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	results := make(map[string]string, len(oids))
	for start := 0; start < len(oids); start += gosnmp.MaxOids {
		end := start + gosnmp.MaxOids
		if end > len(oids) {
			end = len(oids)
		}
		packet, err := c.conn.Get(oids[start:end])
		if err != nil {
			return nil, fmt.Errorf("SNMP GET failed for %s: %w", strings.Join(oids[start:end], ","), err)
		}
		for _, variable := range packet.Variables {
			switch variable.Type {
			case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
				continue
			}
			results[NormalizeOID(variable.Name)] = FormatValue(variable)
		}
	}
	return results, nil
}

// Walk returns every variable below oid. SNMPv1 agents are walked with
// GETNEXT, everything else with GETBULK.
func (c *Client) Walk(oid string) ([]Variable, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	var results []Variable
	collect := func(variable gosnmp.SnmpPDU) error {
		results = append(results, Variable{
			OID:   NormalizeOID(variable.Name),
			Value: FormatValue(variable),
			Type:  variable.Type.String(),
		})
		return nil
	}

	var err error
	if c.conn.Version == gosnmp.Version1 {
		err = c.conn.Walk(oid, collect)
	} else {
		err = c.conn.BulkWalk(oid, collect)
	}
	if err != nil {
		return nil, fmt.Errorf("SNMP WALK failed for OID %s: %w", oid, err)
	}
	return results, nil
}

// NormalizeOID strips the leading dot gosnmp puts on OID names.
func NormalizeOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// FormatValue formats an SNMP variable value as a string
func FormatValue(variable gosnmp.SnmpPDU) string {
	switch variable.Type {
	case gosnmp.OctetString:
		if bytes, ok := variable.Value.([]byte); ok {
			if isPrintable(bytes) {
				return strings.TrimRight(string(bytes), "\x00")
			}
			return hexString(bytes)
		}
		return fmt.Sprintf("%v", variable.Value)
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(variable.Value).String()
	case gosnmp.TimeTicks:
		if ticks, ok := variable.Value.(uint32); ok {
			// 1 tick = 10ms
			duration := time.Duration(ticks) * 10 * time.Millisecond
			return fmt.Sprintf("%s (%d ticks)", duration.String(), ticks)
		}
		return fmt.Sprintf("%v", variable.Value)
	case gosnmp.ObjectIdentifier:
		if s, ok := variable.Value.(string); ok {
			return NormalizeOID(s)
		}
		return fmt.Sprintf("%v", variable.Value)
	case gosnmp.IPAddress:
		if s, ok := variable.Value.(string); ok {
			return s
		}
		if bytes, ok := variable.Value.([]byte); ok && len(bytes) == 4 {
			return fmt.Sprintf("%d.%d.%d.%d", bytes[0], bytes[1], bytes[2], bytes[3])
		}
		return fmt.Sprintf("%v", variable.Value)
	default:
		return fmt.Sprintf("%v", variable.Value)
	}
}

func isPrintable(b []byte) bool {
	for _, r := range string(b) {
		if r == 0 {
			continue
		}
		if r == unicode.ReplacementChar || (!unicode.IsPrint(r) && !unicode.IsSpace(r)) {
			return false
		}
	}
	return true
}

func hexString(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, ":")
}

// Variable represents an SNMP variable
type Variable struct {
	OID   string `json:"oid"`
	Value string `json:"value"`
	Type  string `json:"type"`
}
