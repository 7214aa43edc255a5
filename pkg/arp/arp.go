// Package arp reads the kernel neighbour table so a locally reachable
// host can be paired with its MAC address.
// It parses the Linux /proc/net/arp file; other platforms report no entries.
package arp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/scottpeterman/netdisco/pkg/models"
)

// DefaultPath is the Linux ARP table.
const DefaultPath = "/proc/net/arp"

// Entry represents a single ARP table entry
type Entry struct {
	IP     string
	HWAddr string // canonical XX:XX:XX:XX:XX:XX
	Device string
}

// Parse reads the /proc/net/arp format:
// IP address       HW type     Flags       HW address            Mask     Device
// 192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)

	// header
	if !scanner.Scan() {
		return entries, scanner.Err()
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}

		// 0x0 flags = incomplete
		if fields[2] == "0x0" {
			continue
		}
		if net.ParseIP(fields[0]) == nil {
			continue
		}
		mac, ok := models.NormalizeMAC(fields[3])
		if !ok || mac == "00:00:00:00:00:00" {
			continue
		}

		entries = append(entries, Entry{IP: fields[0], HWAddr: mac, Device: fields[5]})
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading ARP table: %w", err)
	}
	return entries, nil
}

// Table looks up MACs in an ARP file, re-reading it on every call so
// entries learned by a probe a moment ago are visible.
type Table struct {
	Path string
}

// NewTable returns a Table over path, or DefaultPath when empty.
func NewTable(path string) *Table {
	if path == "" {
		path = DefaultPath
	}
	return &Table{Path: path}
}

// Lookup returns the MAC for ip, or "" when the table has no complete
// entry for it or is not available on this platform.
func (t *Table) Lookup(ip string) (string, error) {
	f, err := os.Open(t.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", t.Path, err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IP == ip {
			return e.HWAddr, nil
		}
	}
	return "", nil
}
