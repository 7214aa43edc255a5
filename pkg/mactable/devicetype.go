package mactable

import (
	"github.com/scottpeterman/netdisco/pkg/models"
)

// DeviceTypeClassifier guesses what kind of host owns a MAC address.
// Implementations are heuristics; none of them is authoritative.
type DeviceTypeClassifier interface {
	DeviceType(mac string) string
}

// DeviceTypeFunc adapts a function to DeviceTypeClassifier.
type DeviceTypeFunc func(mac string) string

func (f DeviceTypeFunc) DeviceType(mac string) string { return f(mac) }

// DefaultDeviceTypes is the category list HashClassifier picks from.
var DefaultDeviceTypes = []string{"Workstation", "Phone", "Printer", "Camera", "IoT Device", "Server"}

// HashClassifier picks a type by summing the three OUI bytes modulo the
// number of types. It is stable for a given OUI and nothing more.
type HashClassifier struct {
	types []string
}

// NewHashClassifier uses DefaultDeviceTypes when types is empty.
func NewHashClassifier(types []string) *HashClassifier {
	if len(types) == 0 {
		types = DefaultDeviceTypes
	}
	return &HashClassifier{types: types}
}

func (h *HashClassifier) DeviceType(mac string) string {
	hex := models.CompactMAC(mac)
	if len(hex) < 6 {
		return "Unknown"
	}
	sum := 0
	for i := 0; i < 6; i += 2 {
		sum += hexByte(hex[i], hex[i+1])
	}
	return h.types[sum%len(h.types)]
}

func hexByte(hi, lo byte) int {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(c byte) int {
	if c >= 'A' {
		return int(c-'A') + 10
	}
	return int(c - '0')
}

// ManufacturerLookup resolves a MAC to a manufacturer name, "" when unknown.
type ManufacturerLookup func(mac string) string

// OUIClassifier reports the manufacturer from an OUI table as the device
// type and falls back to another classifier for unknown prefixes.
type OUIClassifier struct {
	lookup   ManufacturerLookup
	fallback DeviceTypeClassifier
}

// NewOUIClassifier creates an OUIClassifier. A nil fallback selects HashClassifier.
func NewOUIClassifier(lookup ManufacturerLookup, fallback DeviceTypeClassifier) *OUIClassifier {
	if fallback == nil {
		fallback = NewHashClassifier(nil)
	}
	return &OUIClassifier{lookup: lookup, fallback: fallback}
}

func (o *OUIClassifier) DeviceType(mac string) string {
	if o.lookup != nil {
		if m := o.lookup(mac); m != "" {
			return m + " device"
		}
	}
	return o.fallback.DeviceType(mac)
}
