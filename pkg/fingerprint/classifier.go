// Package fingerprint identifies the manufacturer, model and category of
// discovered hosts from their MAC OUI and SNMP system information.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/snmp"
)

// Entity-MIB chassis row.
const (
	OIDEntPhysicalDescr     = "1.3.6.1.2.1.47.1.1.1.1.2.1"
	OIDEntPhysicalModelName = "1.3.6.1.2.1.47.1.1.1.1.13.1"
)

// HostnameResolver maps an address back to a name.
type HostnameResolver interface {
	LookupPTR(ctx context.Context, ip string) (string, error)
}

// Classifier fills identity fields of a DiscoveredDevice.
type Classifier struct {
	agent     agent.Agent
	tables    *Tables
	resolver  HostnameResolver
	entityMIB bool
	logger    func(string)
	mutex     sync.RWMutex
}

// NewClassifier creates a Classifier over tables. Entity-MIB refinement
// is on by default.
func NewClassifier(a agent.Agent, tables *Tables) *Classifier {
	return &Classifier{
		agent:     a,
		tables:    tables,
		entityMIB: true,
		logger:    func(msg string) {},
	}
}

// SetResolver enables the reverse DNS hostname fallback.
func (c *Classifier) SetResolver(r HostnameResolver) {
	c.resolver = r
}

// SetEntityMIB toggles the Entity-MIB refinement queries.
func (c *Classifier) SetEntityMIB(enabled bool) {
	c.entityMIB = enabled
}

// SetLogger sets a custom logger function in a thread-safe manner
func (c *Classifier) SetLogger(logger func(string)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if logger != nil {
		c.logger = logger
	} else {
		c.logger = func(msg string) {}
	}
}

func (c *Classifier) log(format string, args ...interface{}) {
	c.mutex.RLock()
	logger := c.logger
	c.mutex.RUnlock()
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
	}
}

// systemInfo is what SNMP told us about a device.
type systemInfo struct {
	sysName     string
	sysDescr    string
	sysObjectID string
	// hints from the agent's own classification, used only to fill gaps
	manufacturer string
	model        string
	deviceType   string
}

// Classify updates dev in place. The OUI table supplies a manufacturer
// first; SNMP data then overrides it and supplies model, category and
// hostname. dev is always left consistent and NeedsVerification is
// recomputed. A non-nil error reports that SNMP could not be used, so
// the result rests on the OUI alone.
func (c *Classifier) Classify(ctx context.Context, dev *models.DiscoveredDevice, target agent.SNMPTarget) error {
	if dev.Category == "" {
		dev.Category = models.CategoryOther
	}
	if dev.MACAddress != "" {
		if m := c.tables.LookupOUI(dev.MACAddress); m != "" {
			dev.Manufacturer = m
		}
	}

	target.IP = dev.IPAddress
	info, err := c.systemInfo(ctx, target)
	if err != nil {
		c.log("%s: snmp failed: %v", dev.IPAddress, err)
		c.resolveHostname(ctx, dev)
		dev.UpdateVerification()
		return err
	}

	c.apply(dev, info)
	if c.entityMIB && ctx.Err() == nil {
		c.refineFromEntityMIB(ctx, dev, target)
	}
	c.resolveHostname(ctx, dev)
	dev.UpdateVerification()
	return nil
}

func (c *Classifier) systemInfo(ctx context.Context, target agent.SNMPTarget) (*systemInfo, error) {
	resp, getErr := c.agent.SNMPGet(ctx, agent.GetRequest{
		SNMPTarget: target,
		OIDs:       []string{snmp.OIDSysDescr, snmp.OIDSysObjectID, snmp.OIDSysName},
	})
	if getErr == nil && len(resp.Results) > 0 {
		return &systemInfo{
			sysName:     resp.Results[snmp.OIDSysName],
			sysDescr:    resp.Results[snmp.OIDSysDescr],
			sysObjectID: snmp.NormalizeOID(resp.Results[snmp.OIDSysObjectID]),
		}, nil
	}
	if getErr == nil {
		getErr = errors.New("no system values returned")
	}
	if ctx.Err() != nil {
		return nil, getErr
	}

	dresp, devErr := c.agent.DiscoverDevice(ctx, agent.DeviceRequest{SNMPTarget: target})
	if devErr != nil {
		return nil, errors.Join(getErr, devErr)
	}
	d := dresp.Device
	if d.SysDescr == "" && d.SysName == "" && d.SysObjectID == "" && d.Manufacturer == "" {
		return nil, errors.Join(getErr, errors.New("device discovery returned nothing"))
	}
	return &systemInfo{
		sysName:      d.SysName,
		sysDescr:     d.SysDescr,
		sysObjectID:  snmp.NormalizeOID(d.SysObjectID),
		manufacturer: d.Manufacturer,
		model:        d.Model,
		deviceType:   d.Type,
	}, nil
}

func (c *Classifier) apply(dev *models.DiscoveredDevice, info *systemInfo) {
	dev.SysDescr = info.sysDescr
	dev.SysObjectID = info.sysObjectID
	if name := strings.TrimSpace(info.sysName); name != "" {
		dev.Hostname = name
	}

	manufacturer := c.tables.ManufacturerForOID(info.sysObjectID)
	if manufacturer == "" {
		manufacturer = c.tables.ManufacturerFromText(info.sysDescr)
	}
	if manufacturer == "" {
		manufacturer = info.manufacturer
	}
	if manufacturer != "" {
		dev.Manufacturer = manufacturer
	}

	if model := c.tables.ExtractModel(dev.Manufacturer, info.sysDescr); model != "" {
		dev.Model = model
	} else if info.model != "" {
		dev.Model = info.model
	}

	category := c.tables.Category(info.sysObjectID, info.sysDescr)
	if category == models.CategoryOther {
		if hinted, ok := models.ParseCategory(info.deviceType); ok {
			category = hinted
		}
	}
	dev.Category = category
}

// refineFromEntityMIB reads the chassis description and model name. A
// keyword hit in either overrides the category; the model name fills a
// missing model. Failures are ignored.
func (c *Classifier) refineFromEntityMIB(ctx context.Context, dev *models.DiscoveredDevice, target agent.SNMPTarget) {
	resp, err := c.agent.SNMPGet(ctx, agent.GetRequest{
		SNMPTarget: target,
		OIDs:       []string{OIDEntPhysicalDescr, OIDEntPhysicalModelName},
	})
	if err != nil {
		c.log("%s: entity mib unavailable: %v", dev.IPAddress, err)
		return
	}

	descr := strings.TrimSpace(resp.Results[OIDEntPhysicalDescr])
	modelName := strings.TrimSpace(resp.Results[OIDEntPhysicalModelName])

	if cat, ok := c.tables.CategoryFromText(descr + " " + modelName); ok {
		dev.Category = cat
	}
	if dev.Model == "" && modelName != "" {
		dev.Model = modelName
	}
}

func (c *Classifier) resolveHostname(ctx context.Context, dev *models.DiscoveredDevice) {
	if dev.Hostname != "" || c.resolver == nil || ctx.Err() != nil {
		return
	}
	name, err := c.resolver.LookupPTR(ctx, dev.IPAddress)
	if err != nil {
		c.log("%s: reverse lookup failed: %v", dev.IPAddress, err)
		return
	}
	dev.Hostname = name
}
