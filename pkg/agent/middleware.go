package agent

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/scottpeterman/netdisco/pkg/metrics"
)

// Throttle paces every call to a through limiter. Waiting honours the
// call's context, so a cancelled run does not queue further requests.
func Throttle(a Agent, limiter *rate.Limiter) Agent {
	if limiter == nil {
		return a
	}
	return &throttled{next: a, limiter: limiter}
}

type throttled struct {
	next    Agent
	limiter *rate.Limiter
}

func (t *throttled) Health(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.Health(ctx)
}

func (t *throttled) Probe(ctx context.Context, req ProbeRequest) (*ProbeResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Probe(ctx, req)
}

func (t *throttled) SNMPGet(ctx context.Context, req GetRequest) (*GetResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.SNMPGet(ctx, req)
}

func (t *throttled) SNMPWalk(ctx context.Context, req WalkRequest) (*WalkResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.SNMPWalk(ctx, req)
}

func (t *throttled) DiscoverDevice(ctx context.Context, req DeviceRequest) (*DeviceResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.DiscoverDevice(ctx, req)
}

func (t *throttled) DiscoverVlans(ctx context.Context, req VlanRequest) (*VlanResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.DiscoverVlans(ctx, req)
}

func (t *throttled) DiscoverMacAddresses(ctx context.Context, req MacRequest) (*MacResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.DiscoverMacAddresses(ctx, req)
}

func (t *throttled) Connect(ctx context.Context, req ConnectRequest) (*ConnectResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Connect(ctx, req)
}

func (t *throttled) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Execute(ctx, req)
}

// Disconnect is not throttled; sessions must always be released.
func (t *throttled) Disconnect(ctx context.Context, req DisconnectRequest) error {
	return t.next.Disconnect(ctx, req)
}

// Instrument records latency and failures of every call in the
// metrics package collectors.
func Instrument(a Agent) Agent {
	return &instrumented{next: a}
}

type instrumented struct {
	next Agent
}

func observe(op string) func(error) {
	timer := prometheus.NewTimer(metrics.AgentCallDuration.WithLabelValues(op))
	return func(err error) {
		timer.ObserveDuration()
		if err != nil {
			metrics.AgentCallErrors.WithLabelValues(op).Inc()
		}
	}
}

func (i *instrumented) Health(ctx context.Context) (err error) {
	done := observe("health")
	defer func() { done(err) }()
	return i.next.Health(ctx)
}

func (i *instrumented) Probe(ctx context.Context, req ProbeRequest) (resp *ProbeResponse, err error) {
	done := observe("probe")
	defer func() { done(err) }()
	return i.next.Probe(ctx, req)
}

func (i *instrumented) SNMPGet(ctx context.Context, req GetRequest) (resp *GetResponse, err error) {
	done := observe("snmp_get")
	defer func() { done(err) }()
	return i.next.SNMPGet(ctx, req)
}

func (i *instrumented) SNMPWalk(ctx context.Context, req WalkRequest) (resp *WalkResponse, err error) {
	done := observe("snmp_walk")
	defer func() { done(err) }()
	return i.next.SNMPWalk(ctx, req)
}

func (i *instrumented) DiscoverDevice(ctx context.Context, req DeviceRequest) (resp *DeviceResponse, err error) {
	done := observe("discover_device")
	defer func() { done(err) }()
	return i.next.DiscoverDevice(ctx, req)
}

func (i *instrumented) DiscoverVlans(ctx context.Context, req VlanRequest) (resp *VlanResponse, err error) {
	done := observe("discover_vlans")
	defer func() { done(err) }()
	return i.next.DiscoverVlans(ctx, req)
}

func (i *instrumented) DiscoverMacAddresses(ctx context.Context, req MacRequest) (resp *MacResponse, err error) {
	done := observe("discover_mac_addresses")
	defer func() { done(err) }()
	return i.next.DiscoverMacAddresses(ctx, req)
}

func (i *instrumented) Connect(ctx context.Context, req ConnectRequest) (resp *ConnectResponse, err error) {
	done := observe(string(req.Method) + "_connect")
	defer func() { done(err) }()
	return i.next.Connect(ctx, req)
}

func (i *instrumented) Execute(ctx context.Context, req ExecuteRequest) (resp *ExecuteResponse, err error) {
	done := observe(string(req.Method) + "_execute")
	defer func() { done(err) }()
	return i.next.Execute(ctx, req)
}

func (i *instrumented) Disconnect(ctx context.Context, req DisconnectRequest) (err error) {
	done := observe(string(req.Method) + "_disconnect")
	defer func() { done(err) }()
	return i.next.Disconnect(ctx, req)
}
