package vlan

import (
	"sort"

	"github.com/scottpeterman/netdisco/pkg/metrics"
	"github.com/scottpeterman/netdisco/pkg/models"
)

// Merge folds VLAN lists into one entry per id. The first occurrence of
// an id fixes its name, segment name and subnet; later occurrences only
// add the UsedBy and Ports entries that are not already present. Ids
// outside 1..4094 are dropped. The result is sorted by id.
func Merge(lists ...[]models.DiscoveredVlan) []models.DiscoveredVlan {
	merged := []models.DiscoveredVlan{}
	index := map[int]int{}

	for _, list := range lists {
		for _, v := range list {
			if !models.ValidVlanID(v.VlanID) {
				metrics.VlansRejected.Inc()
				continue
			}
			i, ok := index[v.VlanID]
			if !ok {
				segment := v.SegmentName
				if segment == "" {
					segment = v.Name
				}
				index[v.VlanID] = len(merged)
				merged = append(merged, models.DiscoveredVlan{
					VlanID:      v.VlanID,
					Name:        v.Name,
					SegmentName: segment,
					Subnet:      v.Subnet,
					UsedBy:      union(nil, v.UsedBy),
					Ports:       union(nil, v.Ports),
				})
				continue
			}
			m := &merged[i]
			m.UsedBy = union(m.UsedBy, v.UsedBy)
			m.Ports = union(m.Ports, v.Ports)
		}
	}

	sort.SliceStable(merged, func(a, b int) bool { return merged[a].VlanID < merged[b].VlanID })
	for i := range merged {
		if len(merged[i].Ports) == 0 {
			merged[i].Ports = nil
		}
	}
	return merged
}

// union appends the members of add missing from dst, keeping order.
func union(dst, add []string) []string {
	if dst == nil {
		dst = []string{}
	}
	seen := make(map[string]bool, len(dst)+len(add))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range add {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}
