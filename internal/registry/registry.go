// Package registry implements address allocation on top of the storage
// layer: grant, release, next-free lookup and utilization. It validates
// requested addresses against the VLAN's persisted geometry and leaves
// the final claim to the store's unique indexes, so two racing callers
// can never both win an address.
package registry

import (
	"errors"
	"math"
	"time"

	"github.com/mhaustein/ipamd/internal/ipcalc"
	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/storage"
)

var (
	// ErrAddressNotInVLAN is returned when the requested address does not
	// belong to the VLAN's subnet.
	ErrAddressNotInVLAN = errors.New("address not in vlan network")

	// ErrAddressReserved is returned when the requested address falls in
	// a management block, on the network base or on broadcast.
	ErrAddressReserved = errors.New("address is reserved")

	// ErrVLANExhausted is returned when no assignable address is free.
	ErrVLANExhausted = errors.New("no free address in vlan")
)

// Registry grants and releases addresses.
type Registry struct {
	store storage.Store
}

// New creates a Registry backed by store.
func New(store storage.Store) *Registry {
	return &Registry{store: store}
}

// plan rebuilds the VLAN's geometry from its persisted columns.
func (r *Registry) plan(v *model.VLAN) (*ipcalc.Plan, error) {
	return ipcalc.Restore(v.NetworkAddress, v.PrefixLength, v.AssignableStart, v.AssignableEnd)
}

// Assign grants ipAddress in the VLAN to a device. The address must lie
// in the assignable range; reserved and out-of-network addresses are
// rejected before the store is touched. The MAC address, when present,
// is canonicalized so equivalent spellings collide on the uniqueness
// check. Conflicts surface as storage.ErrAddressAssigned or
// storage.ErrMACAssigned with nothing persisted.
func (r *Registry) Assign(vlanID, ipAddress, macAddress, deviceName string) (*model.Assignment, error) {
	v, err := r.store.GetVLAN(vlanID)
	if err != nil {
		return nil, err
	}

	plan, err := r.plan(v)
	if err != nil {
		return nil, err
	}

	membership, err := plan.ClassifyString(ipAddress)
	if err != nil {
		return nil, err
	}
	switch membership {
	case ipcalc.NotInNetwork:
		return nil, ErrAddressNotInVLAN
	case ipcalc.Reserved:
		return nil, ErrAddressReserved
	}

	mac, err := model.NormalizeMAC(macAddress)
	if err != nil {
		return nil, err
	}

	a := &model.Assignment{
		VLANID:     v.ID,
		IPAddress:  ipAddress,
		MACAddress: mac,
		DeviceName: deviceName,
	}
	if err := r.store.ClaimAddress(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Release marks an assignment inactive, freeing its IP and MAC for
// reuse. The assignment row is retained as audit history.
func (r *Registry) Release(assignmentID string) (*model.Assignment, error) {
	if err := r.store.ReleaseAssignment(assignmentID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return r.store.GetAssignment(assignmentID)
}

// NextFree returns the lowest unassigned assignable address in the VLAN.
// It walks the gap between the sorted active addresses and the
// assignable range, so the cost scales with the number of assignments,
// not the subnet size. The answer is advisory: a concurrent claim can
// take the address before the caller does.
func (r *Registry) NextFree(vlanID string) (string, error) {
	v, err := r.store.GetVLAN(vlanID)
	if err != nil {
		return "", err
	}

	plan, err := r.plan(v)
	if err != nil {
		return "", err
	}

	start := plan.AssignableRange.Start
	end := plan.AssignableRange.End

	taken, err := r.store.ActiveAddressNums(vlanID, start, end)
	if err != nil {
		return "", err
	}

	candidate := start
	for _, n := range taken {
		if n > candidate {
			break
		}
		if n == candidate {
			candidate++
		}
	}
	if candidate > end {
		return "", ErrVLANExhausted
	}
	return ipcalc.FormatIP(candidate), nil
}

// Utilization reports address consumption for the VLAN. The percentage
// is rounded to two decimals and defined as zero when the VLAN has no
// assignable addresses.
func (r *Registry) Utilization(vlanID string) (*model.Utilization, error) {
	v, err := r.store.GetVLAN(vlanID)
	if err != nil {
		return nil, err
	}

	assigned, err := r.store.CountActiveAssignments(vlanID)
	if err != nil {
		return nil, err
	}

	u := &model.Utilization{
		VLANID:          v.ID,
		AssignableCount: v.AssignableCount,
		AssignedCount:   assigned,
	}
	if assigned < v.AssignableCount {
		u.AvailableCount = v.AssignableCount - assigned
	}
	if v.AssignableCount > 0 {
		pct := float64(assigned) / float64(v.AssignableCount) * 100
		u.Percentage = math.Round(pct*100) / 100
	}
	return u, nil
}

// Preview computes the geometry a VLAN would get for the given network
// and mask without persisting anything.
func (r *Registry) Preview(networkAddress, mask string) (*ipcalc.Plan, error) {
	return ipcalc.Partition(networkAddress, mask)
}
