// Package discovery sequences a discovery run: probe and classify every
// planned host, discover VLANs on the switches found, then walk their
// MAC tables. Work is strictly sequential; a failed unit degrades its own
// record and the run goes on.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/fingerprint"
	"github.com/scottpeterman/netdisco/pkg/mactable"
	"github.com/scottpeterman/netdisco/pkg/metrics"
	"github.com/scottpeterman/netdisco/pkg/models"
	"github.com/scottpeterman/netdisco/pkg/probe"
	"github.com/scottpeterman/netdisco/pkg/progress"
	"github.com/scottpeterman/netdisco/pkg/vlan"
)

// Options tune the components an Engine builds.
type Options struct {
	CLI vlan.CLIConfig
	// DeviceTypes classifies MAC table entries; nil selects the hash strategy.
	DeviceTypes mactable.DeviceTypeClassifier
	// AgentSideMacs delegates each switch walk to the agent in one call.
	AgentSideMacs bool
	// Resolver supplies hostnames for devices without sysName.
	Resolver fingerprint.HostnameResolver
	// Tables defaults to the embedded lookup tables.
	Tables           *fingerprint.Tables
	DisableEntityMIB bool
}

// Engine runs discoveries against one Access Agent.
type Engine struct {
	agent      agent.Agent
	prober     *probe.Prober
	classifier *fingerprint.Classifier
	vlans      *vlan.Discoverer
	macs       *mactable.Discoverer

	logger func(string)
	mutex  sync.RWMutex
}

// New wires the discovery components around a.
func New(a agent.Agent, opts Options) (*Engine, error) {
	if a == nil {
		return nil, errdefs.Validationf("discovery", "no access agent configured")
	}
	tables := opts.Tables
	if tables == nil {
		var err error
		if tables, err = fingerprint.DefaultTables(); err != nil {
			return nil, err
		}
	}

	classifier := fingerprint.NewClassifier(a, tables)
	if opts.Resolver != nil {
		classifier.SetResolver(opts.Resolver)
	}
	classifier.SetEntityMIB(!opts.DisableEntityMIB)

	macs := mactable.NewDiscoverer(a, opts.DeviceTypes)
	macs.SetAgentSide(opts.AgentSideMacs)

	return &Engine{
		agent:      a,
		prober:     probe.New(a),
		classifier: classifier,
		vlans:      vlan.NewDiscoverer(a, opts.CLI),
		macs:       macs,
		logger:     func(msg string) {},
	}, nil
}

// SetLogger sets a custom logger function in a thread-safe manner. The
// logger is shared with every component of the engine.
func (e *Engine) SetLogger(logger func(string)) {
	e.mutex.Lock()
	if logger != nil {
		e.logger = logger
	} else {
		e.logger = func(msg string) {}
	}
	e.mutex.Unlock()

	e.classifier.SetLogger(logger)
	e.vlans.SetLogger(logger)
	e.macs.SetLogger(logger)
}

func (e *Engine) log(format string, args ...interface{}) {
	e.mutex.RLock()
	logger := e.logger
	e.mutex.RUnlock()
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(res *Result, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	res.Warnings = append(res.Warnings, msg)
	e.log("%s", msg)
}

// Discover runs req to completion, discarding progress events. The
// result is returned even when err is non-nil and holds whatever was
// found before the failure.
func (e *Engine) Discover(ctx context.Context, req Request) (*Result, error) {
	run, err := e.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	for range run.Events() {
	}
	return run.Wait()
}

func (e *Engine) run(ctx context.Context, id string, p *plan, rep *progress.Reporter) (*Result, error) {
	res := &Result{
		RunID:        id,
		CIDR:         p.req.CIDR,
		StartedAt:    time.Now(),
		Devices:      []models.DiscoveredDevice{},
		Vlans:        []models.DiscoveredVlan{},
		MacAddresses: []models.MacAddressEntry{},
	}

	err := e.execute(ctx, p, rep, res)
	res.FinishedAt = time.Now()
	metrics.RunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	outcome := "success"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
	case len(res.Warnings) > 0:
		outcome = "partial"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		e.log("run %s %s: %v", id, outcome, err)
		return res, err
	}
	rep.Stage(progress.StageDone, 100, 100).Report(ctx, fmt.Sprintf("%d devices, %d vlans, %d mac entries, %d warnings",
		len(res.Devices), len(res.Vlans), len(res.MacAddresses), len(res.Warnings)), 100)
	return res, nil
}

func (e *Engine) execute(ctx context.Context, p *plan, rep *progress.Reporter, res *Result) error {
	if err := e.agent.Health(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errdefs.Connectivity("agent health", err)
	}

	planRep := rep.Stage(progress.StagePlan, 0, 0)
	if p.hosts != nil {
		ips := p.hosts.ScanPlan(p.req.MaxHosts)
		res.TotalHosts = p.hosts.TotalHosts
		res.Sampled = p.hosts.Sampled(p.req.MaxHosts)
		planRep.Report(ctx, fmt.Sprintf("%s: scanning %d of %d hosts", p.hosts.Prefix, len(ips), p.hosts.TotalHosts), 100)

		if err := e.scanHosts(ctx, p, ips, rep.Stage(progress.StageHosts, 0, 70), res); err != nil {
			return err
		}
	} else {
		planRep.Report(ctx, fmt.Sprintf("%d switches, no host scan", len(p.switches)), 100)
	}

	if !p.req.DiscoverVlans {
		return nil
	}

	switches, err := e.switchTargets(ctx, p, res)
	if err != nil {
		return err
	}
	if len(switches) == 0 {
		e.warn(res, "no switches found, skipping vlan discovery")
	}

	vres, err := e.vlans.Discover(ctx, switches, rep.Stage(progress.StageVlans, 70, 85))
	if vres != nil {
		res.Vlans = vres.Vlans
		res.Warnings = append(res.Warnings, vres.Warnings...)
	}
	if err != nil {
		return err
	}

	if !p.req.DiscoverMacs {
		return nil
	}
	return e.walkMacTables(ctx, vres.Switches, rep.Stage(progress.StageMacs, 85, 100), res)
}

func (e *Engine) scanHosts(ctx context.Context, p *plan, ips []string, rep *progress.Reporter, res *Result) error {
	for i, ip := range ips {
		if err := ctx.Err(); err != nil {
			return err
		}

		dev, err := e.scanHost(ctx, p, ip, res)
		if err != nil {
			return err
		}
		res.HostsScanned++

		msg := ip + ": unreachable"
		if dev != nil {
			res.Devices = append(res.Devices, *dev)
			msg = fmt.Sprintf("%s: %s", ip, dev.Category)
		}
		rep.Report(ctx, msg, progress.Linear(i+1, len(ips)))
	}
	return nil
}

// scanHost probes and classifies one address. A nil device means the
// host did not answer. Only cancellation is returned as an error.
func (e *Engine) scanHost(ctx context.Context, p *plan, ip string, res *Result) (*models.DiscoveredDevice, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, errdefs.Validationf("discovery", "planned address %q: %v", ip, err)
	}

	pr, err := e.prober.Probe(ctx, addr, p.localRef, p.localBits)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.HostsProbed.WithLabelValues("error").Inc()
		metrics.DevicesNeedingVerification.Inc()
		e.warn(res, "%s: probe failed: %v", ip, err)
		return &models.DiscoveredDevice{
			IPAddress:         ip,
			Category:          models.CategoryOther,
			Status:            models.StatusUnknown,
			NeedsVerification: true,
			IsRouted:          pr.IsRouted,
		}, nil
	}
	if !pr.Reachable {
		metrics.HostsProbed.WithLabelValues("unreachable").Inc()
		return nil, nil
	}
	metrics.HostsProbed.WithLabelValues("reachable").Inc()

	dev := &models.DiscoveredDevice{
		IPAddress:  ip,
		MACAddress: pr.MACAddress,
		Status:     models.StatusOnline,
		IsRouted:   pr.IsRouted,
	}
	if err := e.classifier.Classify(ctx, dev, p.target); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.warn(res, "%s: classified without snmp: %v", ip, err)
	}

	metrics.DevicesClassified.WithLabelValues(string(dev.Category)).Inc()
	if dev.NeedsVerification {
		metrics.DevicesNeedingVerification.Inc()
	}
	return dev, nil
}

// switchTargets lists the switches found by the scan followed by the
// explicitly requested ones. Explicit switches that were not scanned are
// classified first so their make selects the right CLI dialect.
func (e *Engine) switchTargets(ctx context.Context, p *plan, res *Result) ([]vlan.Switch, error) {
	var switches []vlan.Switch
	seen := map[string]bool{}
	known := map[string]*models.DiscoveredDevice{}

	add := func(dev *models.DiscoveredDevice) {
		if seen[dev.IPAddress] {
			return
		}
		seen[dev.IPAddress] = true
		target := p.target
		target.IP = dev.IPAddress
		switches = append(switches, vlan.Switch{
			SNMPTarget:   target,
			Name:         dev.Hostname,
			Manufacturer: dev.Manufacturer,
		})
	}

	for i := range res.Devices {
		dev := &res.Devices[i]
		known[dev.IPAddress] = dev
		if dev.Category == models.CategorySwitch {
			add(dev)
		}
	}

	for _, ip := range p.switches {
		if dev, ok := known[ip]; ok {
			add(dev)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dev := &models.DiscoveredDevice{IPAddress: ip}
		if err := e.classifier.Classify(ctx, dev, p.target); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log("%s: switch identity unknown: %v", ip, err)
		}
		add(dev)
	}
	return switches, nil
}

// walkMacTables walks every switch over the VLANs it reported, splitting
// rep evenly between the switches.
func (e *Engine) walkMacTables(ctx context.Context, switches []vlan.SwitchResult, rep *progress.Reporter, res *Result) error {
	if len(res.Vlans) == 0 {
		return errdefs.Validationf("mac discovery", "no vlans discovered, nothing to walk")
	}

	var targets []vlan.SwitchResult
	for _, sr := range switches {
		if len(sr.VlanIDs) > 0 {
			targets = append(targets, sr)
		}
	}

	for i, sr := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		lo, hi := i*100/len(targets), (i+1)*100/len(targets)
		mres, err := e.macs.Discover(ctx, sr.Switch.SNMPTarget, sr.Switch.Identifier(), sr.VlanIDs, rep.Stage(progress.StageMacs, lo, hi))
		if mres != nil {
			res.MacAddresses = append(res.MacAddresses, mres.Entries...)
			res.Warnings = append(res.Warnings, mres.Warnings...)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.warn(res, "%s: mac discovery failed: %v", sr.Switch.IP, err)
		}
	}
	return nil
}
