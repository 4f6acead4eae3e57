// Package report assembles read-only views over the hierarchy and the
// allocation registry: the full containment tree, firewall compliance
// and per-VLAN utilization.
package report

import (
	"fmt"
	"time"

	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/storage"
)

// FirewallCheckMaxAge is how old a zone's last firewall check may be
// before the zone counts as overdue.
const FirewallCheckMaxAge = 30 * 24 * time.Hour

// HierarchyVLAN is a VLAN leaf in the hierarchy report.
type HierarchyVLAN struct {
	ID              string `json:"id"`
	Tag             int    `json:"vlan_tag"`
	CIDR            string `json:"cidr"`
	Gateway         string `json:"gateway"`
	AssignableCount uint32 `json:"assignable_count"`
	AssignedCount   uint32 `json:"assigned_count"`
}

// HierarchyZone is a zone node with its VLANs.
type HierarchyZone struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Classification    model.SecurityType `json:"classification"`
	LastFirewallCheck *time.Time         `json:"last_firewall_check,omitempty"`
	VLANs             []HierarchyVLAN    `json:"vlans"`
}

// HierarchyValueStream is a value stream node with its zones.
type HierarchyValueStream struct {
	ID    string          `json:"id"`
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Zones []HierarchyZone `json:"zones"`
}

// HierarchyDomain is a domain node with its value streams.
type HierarchyDomain struct {
	ID           string                 `json:"id"`
	Code         string                 `json:"code"`
	Name         string                 `json:"name"`
	ValueStreams []HierarchyValueStream `json:"value_streams"`
}

// ComplianceEntry is one zone's firewall check status.
type ComplianceEntry struct {
	ZoneID            string             `json:"zone_id"`
	ZoneName          string             `json:"zone_name"`
	Classification    model.SecurityType `json:"classification"`
	LastFirewallCheck *time.Time         `json:"last_firewall_check,omitempty"`
	Overdue           bool               `json:"overdue"`
	OverdueDays       int                `json:"overdue_days,omitempty"`
}

// ComplianceReport summarizes firewall check compliance across zones.
type ComplianceReport struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	TotalZones   int               `json:"total_zones"`
	OverdueZones int               `json:"overdue_zones"`
	Entries      []ComplianceEntry `json:"entries"`
}

// UtilizationEntry is one VLAN's current utilization plus context.
type UtilizationEntry struct {
	VLANID          string  `json:"vlan_id"`
	VLANTag         int     `json:"vlan_tag"`
	CIDR            string  `json:"cidr"`
	AssignableCount uint32  `json:"assignable_count"`
	AssignedCount   uint32  `json:"assigned_count"`
	AvailableCount  uint32  `json:"available_count"`
	Percentage      float64 `json:"percentage"`
}

// Reporter builds reports from the store and registry.
type Reporter struct {
	store storage.Store
	reg   *registry.Registry
}

// New creates a Reporter.
func New(store storage.Store, reg *registry.Registry) *Reporter {
	return &Reporter{store: store, reg: reg}
}

// Hierarchy renders the full containment tree with per-VLAN occupancy.
func (r *Reporter) Hierarchy() ([]HierarchyDomain, error) {
	domains, err := r.store.ListDomains()
	if err != nil {
		return nil, err
	}

	tree := make([]HierarchyDomain, 0, len(domains))
	for _, d := range domains {
		node := HierarchyDomain{ID: d.ID, Code: d.Code, Name: d.Name}

		streams, err := r.store.ListValueStreams(d.ID)
		if err != nil {
			return nil, err
		}
		for _, vs := range streams {
			vsNode := HierarchyValueStream{ID: vs.ID, Code: vs.Code, Name: vs.Name}

			zones, err := r.store.ListZones(vs.ID)
			if err != nil {
				return nil, err
			}
			for _, z := range zones {
				zNode := HierarchyZone{
					ID:                z.ID,
					Name:              z.Name,
					Classification:    z.Classification,
					LastFirewallCheck: z.LastFirewallCheck,
				}

				vlans, err := r.store.ListVLANs(&model.VLANFilter{ZoneID: z.ID})
				if err != nil {
					return nil, err
				}
				for _, v := range vlans {
					assigned, err := r.store.CountActiveAssignments(v.ID)
					if err != nil {
						return nil, err
					}
					zNode.VLANs = append(zNode.VLANs, HierarchyVLAN{
						ID:              v.ID,
						Tag:             v.Tag,
						CIDR:            cidr(v),
						Gateway:         v.Gateway,
						AssignableCount: v.AssignableCount,
						AssignedCount:   assigned,
					})
				}
				vsNode.Zones = append(vsNode.Zones, zNode)
			}
			node.ValueStreams = append(node.ValueStreams, vsNode)
		}
		tree = append(tree, node)
	}
	return tree, nil
}

// Compliance reports every zone's firewall check status relative to now.
// A zone with no recorded check is always overdue.
func (r *Reporter) Compliance(now time.Time) (*ComplianceReport, error) {
	zones, err := r.store.ListZones("")
	if err != nil {
		return nil, err
	}

	rep := &ComplianceReport{
		GeneratedAt: now,
		TotalZones:  len(zones),
		Entries:     make([]ComplianceEntry, 0, len(zones)),
	}

	for _, z := range zones {
		entry := ComplianceEntry{
			ZoneID:            z.ID,
			ZoneName:          z.Name,
			Classification:    z.Classification,
			LastFirewallCheck: z.LastFirewallCheck,
		}
		switch {
		case z.LastFirewallCheck == nil:
			entry.Overdue = true
		case now.Sub(*z.LastFirewallCheck) > FirewallCheckMaxAge:
			entry.Overdue = true
			entry.OverdueDays = int(now.Sub(*z.LastFirewallCheck).Hours()/24) - 30
		}
		if entry.Overdue {
			rep.OverdueZones++
		}
		rep.Entries = append(rep.Entries, entry)
	}
	return rep, nil
}

// Utilization reports current address consumption for every active VLAN.
func (r *Reporter) Utilization() ([]UtilizationEntry, error) {
	vlans, err := r.store.ListVLANs(nil)
	if err != nil {
		return nil, err
	}

	entries := make([]UtilizationEntry, 0, len(vlans))
	for _, v := range vlans {
		u, err := r.reg.Utilization(v.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, UtilizationEntry{
			VLANID:          v.ID,
			VLANTag:         v.Tag,
			CIDR:            cidr(v),
			AssignableCount: u.AssignableCount,
			AssignedCount:   u.AssignedCount,
			AvailableCount:  u.AvailableCount,
			Percentage:      u.Percentage,
		})
	}
	return entries, nil
}

func cidr(v model.VLAN) string {
	return fmt.Sprintf("%s/%d", v.NetworkAddress, v.PrefixLength)
}
