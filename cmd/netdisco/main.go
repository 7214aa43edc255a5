package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/scottpeterman/netdisco/pkg/agent"
	"github.com/scottpeterman/netdisco/pkg/agent/httpagent"
	"github.com/scottpeterman/netdisco/pkg/agent/localagent"
	"github.com/scottpeterman/netdisco/pkg/api"
	"github.com/scottpeterman/netdisco/pkg/config"
	"github.com/scottpeterman/netdisco/pkg/discovery"
	"github.com/scottpeterman/netdisco/pkg/fingerprint"
	"github.com/scottpeterman/netdisco/pkg/mactable"
	"github.com/scottpeterman/netdisco/pkg/persistence"
	"github.com/scottpeterman/netdisco/pkg/resolve"
)

const Version = "1.0.0"

// Operation modes.
const (
	ModeScan  = "scan"
	ModeVlans = "vlans"
	ModeMacs  = "macs"
	ModeServe = "serve"
)

type options struct {
	Mode       string
	ConfigPath string
	Quiet      bool

	// set only when given on the command line
	CIDR      string
	Reference string
	Switches  string
	Community string
	Version   string
	AgentURL  string
	MaxHosts  int
	Output    string
	OutFile   string
	Listen    string
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		log.Fatalf("Error: %v", err)
	}

	logger := func(msg string) { log.Println(msg) }
	if opts.Quiet {
		logger = func(string) {}
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		log.Fatalf("Error creating discovery engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Mode == ModeServe {
		if err := serve(ctx, cfg, engine, logger); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	req := cfg.Request()
	switch opts.Mode {
	case ModeScan:
		req.DiscoverVlans, req.DiscoverMacs = false, false
	case ModeVlans:
		req.DiscoverVlans, req.DiscoverMacs = true, false
	case ModeMacs:
		req.DiscoverVlans, req.DiscoverMacs = true, true
	}

	res, err := runDiscovery(ctx, engine, req, logger)
	if res != nil {
		if werr := writeResult(cfg.Output, res); werr != nil {
			log.Fatalf("Error writing results: %v", werr)
		}
	}
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.Mode, "mode", ModeScan, "Operation mode: scan, vlans, macs, serve")
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to YAML configuration")
	flag.BoolVar(&opts.Quiet, "quiet", false, "Suppress progress and log output")

	flag.StringVar(&opts.CIDR, "cidr", "", "Network to scan (e.g., 192.168.1.0/24)")
	flag.StringVar(&opts.Reference, "local-ref", "", "Local reference IP, optionally with /bits")
	flag.StringVar(&opts.Switches, "switches", "", "Additional switch addresses (comma-separated)")
	flag.StringVar(&opts.Community, "community", "", "SNMP community")
	flag.StringVar(&opts.Version, "snmp-version", "", "SNMP version (1, 2c)")
	flag.StringVar(&opts.AgentURL, "agent", "", "Access Agent URL; empty uses the built-in agent")
	flag.IntVar(&opts.MaxHosts, "max-hosts", -1, "Maximum hosts to scan")
	flag.StringVar(&opts.Output, "output", "", "Output format: table, json")
	flag.StringVar(&opts.OutFile, "output-file", "", "Output file; .json or .json.gz writes a snapshot")
	flag.StringVar(&opts.Listen, "listen", "", "API listen address for serve mode")

	version := flag.Bool("version", false, "Show version")
	flag.Usage = printUsage
	flag.Parse()

	if *version {
		fmt.Printf("netdisco v%s\n", Version)
		os.Exit(0)
	}
	return opts
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `netdisco v%s

USAGE:
    netdisco -mode <mode> [options]

MODES:
    scan    Probe and classify every host in -cidr
    vlans   Scan, then discover VLANs on the switches found
    macs    Scan, discover VLANs, then walk each switch's MAC table
    serve   Run the HTTP API

EXAMPLES:
    netdisco -mode scan -cidr 192.168.1.0/24 -local-ref 192.168.1.10
    netdisco -mode macs -cidr 10.0.0.0/24 -switches 10.0.0.2 -output-file run.json.gz
    netdisco -mode serve -config netdisco.yaml -listen :8080

OPTIONS:
`, Version)
	flag.PrintDefaults()
}

// applyFlags lays command-line values over the loaded configuration.
func applyFlags(cfg *config.Config, opts options) error {
	switch opts.Mode {
	case ModeScan, ModeVlans, ModeMacs, ModeServe:
	default:
		return fmt.Errorf("unknown mode %q", opts.Mode)
	}

	if opts.CIDR != "" {
		cfg.Scan.CIDR = opts.CIDR
	}
	if opts.Reference != "" {
		cfg.Scan.LocalReferenceIP = opts.Reference
	}
	if opts.Switches != "" {
		cfg.Scan.Switches = nil
		for _, s := range strings.Split(opts.Switches, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Scan.Switches = append(cfg.Scan.Switches, s)
			}
		}
	}
	if opts.Community != "" {
		cfg.SNMP.Community = opts.Community
	}
	if opts.Version != "" {
		cfg.SNMP.Version = opts.Version
	}
	if opts.AgentURL != "" {
		cfg.Agent.URL = opts.AgentURL
	}
	if opts.MaxHosts >= 0 {
		cfg.Scan.MaxHosts = opts.MaxHosts
	}
	if opts.Output != "" {
		cfg.Output.Format = opts.Output
	}
	if opts.OutFile != "" {
		cfg.Output.File = opts.OutFile
	}
	if opts.Listen != "" {
		cfg.API.Listen = opts.Listen
	}
	return cfg.Validate()
}

func buildEngine(cfg *config.Config, logger func(string)) (*discovery.Engine, error) {
	tables, err := loadTables(cfg.Tables.Path)
	if err != nil {
		return nil, err
	}

	var a agent.Agent
	if cfg.Agent.URL != "" {
		a = httpagent.NewClient(cfg.Agent.URL, cfg.AgentTimeouts())
		logger(fmt.Sprintf("Using access agent at %s", cfg.Agent.URL))
	} else {
		local := localagent.New(cfg.Agent.ARPPath)
		local.SetIdentifier(tables.Identify)
		local.SetLogger(logger)
		a = local
		logger("Using built-in access agent")
	}
	if cfg.Agent.Rate > 0 {
		a = agent.Throttle(a, rate.NewLimiter(rate.Limit(cfg.Agent.Rate), cfg.Agent.Burst))
	}
	a = agent.Instrument(a)

	opts := discovery.Options{
		CLI:              cfg.VlanCLI(),
		AgentSideMacs:    cfg.Scan.AgentMacDiscovery,
		Tables:           tables,
		DisableEntityMIB: !cfg.Scan.EntityMIB,
	}
	if cfg.Scan.DeviceTypeStrategy == config.StrategyOUITable {
		opts.DeviceTypes = mactable.NewOUIClassifier(tables.LookupOUI, nil)
	}
	if cfg.DNS.Enabled {
		resolver, err := resolve.New(cfg.DNS.Server, cfg.DNS.Timeout)
		if err != nil {
			logger(fmt.Sprintf("Reverse DNS disabled: %v", err))
		} else {
			opts.Resolver = resolver
		}
	}

	engine, err := discovery.New(a, opts)
	if err != nil {
		return nil, err
	}
	engine.SetLogger(logger)
	return engine, nil
}

func loadTables(path string) (*fingerprint.Tables, error) {
	if path == "" {
		return fingerprint.DefaultTables()
	}
	tables, err := fingerprint.LoadTables(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables from %s: %w", path, err)
	}
	return tables, nil
}

func runDiscovery(ctx context.Context, engine *discovery.Engine, req discovery.Request, logger func(string)) (*discovery.Result, error) {
	run, err := engine.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	logger(fmt.Sprintf("Run %s started", run.ID))

	for ev := range run.Events() {
		logger(fmt.Sprintf("[%3d%%] %-5s %s", ev.Percent, ev.Stage, ev.Message))
	}
	return run.Wait()
}

func serve(ctx context.Context, cfg *config.Config, engine *discovery.Engine, logger func(string)) error {
	var store *persistence.Store
	if cfg.Output.SnapshotDir != "" {
		var err error
		store, err = persistence.NewStore(cfg.Output.SnapshotDir, cfg.Output.Keep, cfg.Output.Compress)
		if err != nil {
			return err
		}
	}

	server := api.NewServer(ctx, engine, store)
	server.SetLogger(logger)

	httpServer := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger(fmt.Sprintf("Listening on %s", cfg.API.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
