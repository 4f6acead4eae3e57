package model

import (
	"errors"
	"time"
)

// ErrInvalidTag is returned when a VLAN tag is outside the 802.1Q range.
var ErrInvalidTag = errors.New("invalid vlan tag")

// VLAN tag bounds per IEEE 802.1Q.
const (
	MinVLANTag = 1
	MaxVLANTag = 4094
)

// ValidVLANTag reports whether tag is within the 802.1Q range.
func ValidVLANTag(tag int) bool {
	return tag >= MinVLANTag && tag <= MaxVLANTag
}

// VLAN is a network segment within a zone. The gateway, assignable range
// and counts are computed by the subnet partitioner exactly once at
// creation and persisted; reads never recompute them.
type VLAN struct {
	ID              string    `json:"id"`
	ZoneID          string    `json:"zone_id"`
	Tag             int       `json:"vlan_tag"`
	NetworkAddress  string    `json:"network_address"`
	PrefixLength    int       `json:"prefix_length"`
	Gateway         string    `json:"gateway"`
	AssignableStart string    `json:"assignable_start"`
	AssignableEnd   string    `json:"assignable_end"`
	TotalHosts      uint32    `json:"total_hosts"`
	AssignableCount uint32    `json:"assignable_count"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VLANFilter holds filter criteria for listing VLANs.
type VLANFilter struct {
	ZoneID string // filter by owning zone
}

// Utilization summarizes address consumption for a VLAN.
type Utilization struct {
	VLANID          string  `json:"vlan_id"`
	AssignableCount uint32  `json:"assignable_count"`
	AssignedCount   uint32  `json:"assigned_count"`
	AvailableCount  uint32  `json:"available_count"`
	Percentage      float64 `json:"percentage"`
}

// UtilizationSnapshot is a point-in-time utilization record written by
// the audit scheduler.
type UtilizationSnapshot struct {
	VLANID          string    `json:"vlan_id"`
	VLANTag         int       `json:"vlan_tag"`
	AssignableCount uint32    `json:"assignable_count"`
	AssignedCount   uint32    `json:"assigned_count"`
	Percentage      float64   `json:"percentage"`
	TakenAt         time.Time `json:"taken_at"`
}
