// Package storage persists the containment hierarchy and address
// assignments. The SQLite backend's unique indexes are the authority for
// every uniqueness invariant; callers never rely on in-process state to
// decide whether an address is free.
package storage

import (
	"errors"
	"time"

	"github.com/mhaustein/ipamd/internal/model"
)

var (
	ErrDomainNotFound      = errors.New("domain not found")
	ErrValueStreamNotFound = errors.New("value stream not found")
	ErrZoneNotFound        = errors.New("zone not found")
	ErrVLANNotFound        = errors.New("vlan not found")
	ErrAssignmentNotFound  = errors.New("assignment not found")

	// ErrParentNotFound is returned by create operations whose named
	// parent does not exist. It is always reported before any
	// uniqueness conflict.
	ErrParentNotFound = errors.New("parent not found")

	ErrDuplicateCode     = errors.New("code already in use")
	ErrDuplicateTag      = errors.New("vlan tag already in use")
	ErrAddressAssigned   = errors.New("ip address already assigned")
	ErrMACAssigned       = errors.New("mac address already assigned")
	ErrHasActiveChildren = errors.New("entity has active children")
)

// Store is the persistence boundary for the hierarchy and the
// allocation registry.
type Store interface {
	// Hierarchy. Creation never cascades; every parent must already
	// exist. The subnet partitioner runs exactly once, inside
	// CreateVLAN, and its results are persisted on the row.
	CreateDomain(code, name string) (*model.Domain, error)
	GetDomain(id string) (*model.Domain, error)
	ListDomains() ([]model.Domain, error)
	DeleteDomain(id string) error

	CreateValueStream(domainID, code, name string) (*model.ValueStream, error)
	GetValueStream(id string) (*model.ValueStream, error)
	ListValueStreams(domainID string) ([]model.ValueStream, error)
	DeleteValueStream(id string) error

	CreateZone(valueStreamID, name string, classification model.SecurityType) (*model.Zone, error)
	GetZone(id string) (*model.Zone, error)
	ListZones(valueStreamID string) ([]model.Zone, error)
	TouchFirewallCheck(zoneID string, when time.Time) (*model.Zone, error)

	CreateVLAN(zoneID string, tag int, networkAddress, mask string) (*model.VLAN, error)
	GetVLAN(id string) (*model.VLAN, error)
	ListVLANs(filter *model.VLANFilter) ([]model.VLAN, error)

	// Allocation. ClaimAddress is the concurrency-critical path: one
	// INSERT guarded by partial unique indexes on the active IP and MAC;
	// a losing caller observes ErrAddressAssigned or ErrMACAssigned and
	// nothing is committed.
	ClaimAddress(a *model.Assignment) error
	GetAssignment(id string) (*model.Assignment, error)
	ListAssignments(vlanID string, includeReleased bool) ([]model.Assignment, error)
	ReleaseAssignment(id string, when time.Time) error
	ActiveAddressNums(vlanID string, startNum, endNum uint32) ([]uint32, error)
	CountActiveAssignments(vlanID string) (uint32, error)

	// Audit snapshots written by the scheduler.
	SaveUtilizationSnapshot(s *model.UtilizationSnapshot) error
	LatestUtilizationSnapshots() ([]model.UtilizationSnapshot, error)

	Close() error
}
