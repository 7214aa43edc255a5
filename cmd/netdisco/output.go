package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/scottpeterman/netdisco/pkg/config"
	"github.com/scottpeterman/netdisco/pkg/discovery"
	"github.com/scottpeterman/netdisco/pkg/persistence"
)

func writeResult(out config.OutputConfig, res *discovery.Result) error {
	// snapshot files carry their own envelope and optional compression
	if strings.HasSuffix(out.File, ".json") || strings.HasSuffix(out.File, ".json.gz") {
		if err := persistence.WriteSnapshot(out.File, res); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Results written to %s\n", out.File)
		return nil
	}

	w := io.Writer(os.Stdout)
	if out.File != "" {
		file, err := os.Create(out.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if out.Format == config.FormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	}
	return writeTable(w, res)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateString(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}
	return str[:maxLen-3] + "..."
}

func writeTable(out io.Writer, res *discovery.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "IP ADDRESS\tHOSTNAME\tCATEGORY\tMANUFACTURER\tMODEL\tMAC\tVERIFY")
	for _, d := range res.Devices {
		verify := ""
		if d.NeedsVerification {
			verify = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.IPAddress, truncateString(dash(d.Hostname), 30), d.Category,
			truncateString(dash(d.Manufacturer), 20), truncateString(dash(d.Model), 25),
			dash(d.MACAddress), verify)
	}

	if len(res.Vlans) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "VLAN\tNAME\tSEGMENT\tUSED BY")
		for _, v := range res.Vlans {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.VlanID, dash(v.Name), dash(v.SegmentName), strings.Join(v.UsedBy, ","))
		}
	}

	if len(res.MacAddresses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "MAC ADDRESS\tVLAN\tDEVICE TYPE\tSWITCH\tPORT")
		for _, m := range res.MacAddresses {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.MACAddress, m.VlanID, m.DeviceType, dash(m.Switch), dash(m.Port))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, warning := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}

	sampled := ""
	if res.Sampled {
		sampled = " (sampled)"
	}
	_, err := fmt.Fprintf(out, "\nSummary: %d of %d hosts scanned%s, %d devices, %d vlans, %d mac entries in %s\n",
		res.HostsScanned, res.TotalHosts, sampled, len(res.Devices), len(res.Vlans), len(res.MacAddresses),
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return err
}
