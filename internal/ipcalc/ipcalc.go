// Package ipcalc computes the address geometry of VLAN subnets: the
// gateway, the reserved management blocks and the assignable range.
// All functions are pure and operate on 32-bit host-order integers so
// large subnets never require materializing host lists.
package ipcalc

import (
	"errors"
	"fmt"
	"math/bits"
	"net"
	"strconv"
	"strings"
)

const (
	// ReservedStartCount is the number of host addresses at the start of
	// every subnet held back for management use. The gateway is the first
	// of these, not an additional slot.
	ReservedStartCount = 6

	// ReservedEndCount is the number of host addresses at the end of
	// every subnet held back for management use.
	ReservedEndCount = 1

	// minSubnetSize is the smallest subnet (in total addresses) that can
	// carry the management blocks plus one assignable address: a /29.
	minSubnetSize = 8
)

var (
	ErrMalformedAddress = errors.New("malformed network address")
	ErrMalformedMask    = errors.New("malformed subnet mask")
	ErrNetworkTooSmall  = errors.New("network too small for reserved blocks")
)

// Membership classifies an address against a plan.
type Membership int

const (
	NotInNetwork Membership = iota
	Reserved
	Assignable
)

func (m Membership) String() string {
	switch m {
	case Reserved:
		return "reserved"
	case Assignable:
		return "assignable"
	default:
		return "not-in-network"
	}
}

// Range is an inclusive span of IPv4 addresses.
type Range struct {
	Start uint32
	End   uint32
}

// Contains reports whether ip falls inside the range.
func (r Range) Contains(ip uint32) bool {
	return ip >= r.Start && ip <= r.End
}

func (r Range) String() string {
	return FormatIP(r.Start) + ".." + FormatIP(r.End)
}

// Plan is the computed geometry of a subnet. Plans are value types;
// identical inputs always produce identical plans.
type Plan struct {
	Network         uint32  // network base address
	Prefix          int     // prefix length 0..32
	Gateway         uint32  // first host address
	ReservedRanges  []Range // management blocks, ascending, disjoint
	AssignableRange Range   // inclusive assignable span
	TotalHosts      uint32  // addresses usable by hosts (size - 2)
	AssignableCount uint32
}

// Partition validates a network address and mask and computes the subnet
// geometry. The mask is accepted as a CIDR suffix ("/24" or "24") or in
// dotted-decimal form ("255.255.255.0"); both normalize to the same
// prefix length. The first six host addresses and the last host address
// are reserved; the gateway is the first host address and therefore part
// of the leading reserved block.
//
// Partition is referentially transparent and safe to call repeatedly,
// both at VLAN creation and for preview requests.
func Partition(networkAddress, mask string) (*Plan, error) {
	network, err := ParseIP(networkAddress)
	if err != nil {
		return nil, err
	}

	prefix, err := ParsePrefix(mask)
	if err != nil {
		return nil, err
	}

	size := uint64(1) << (32 - prefix)
	if size < minSubnetSize {
		return nil, fmt.Errorf("%w: /%d provides %d addresses, need %d",
			ErrNetworkTooSmall, prefix, size, minSubnetSize)
	}

	// Normalize the base in case the caller passed a host address.
	network &= prefixMask(prefix)

	first := network + 1                   // first host, doubles as gateway
	last := network + uint32(size-2)       // last host (broadcast excluded)
	assignStart := network + 1 + ReservedStartCount
	assignEnd := last - ReservedEndCount

	// At the /29 minimum the trailing block has no room of its own; the
	// single assignable address is the 7th one after the network base.
	if assignEnd < assignStart {
		assignEnd = assignStart
	}

	reserved := []Range{{Start: first, End: first + ReservedStartCount - 1}}
	if assignEnd < last {
		reserved = append(reserved, Range{Start: assignEnd + 1, End: last})
	}

	return &Plan{
		Network:         network,
		Prefix:          prefix,
		Gateway:         first,
		ReservedRanges:  reserved,
		AssignableRange: Range{Start: assignStart, End: assignEnd},
		TotalHosts:      uint32(size - 2),
		AssignableCount: assignEnd - assignStart + 1,
	}, nil
}

// Classify places ip relative to the plan in O(1): outside the subnet,
// inside the assignable range, or reserved. The network base and
// broadcast addresses classify as reserved since they are within the
// subnet but never grantable.
func (p *Plan) Classify(ip uint32) Membership {
	if ip&prefixMask(p.Prefix) != p.Network {
		return NotInNetwork
	}
	if p.AssignableRange.Contains(ip) {
		return Assignable
	}
	return Reserved
}

// ClassifyString parses ip and classifies it against the plan.
func (p *Plan) ClassifyString(ip string) (Membership, error) {
	addr, err := ParseIP(ip)
	if err != nil {
		return NotInNetwork, err
	}
	return p.Classify(addr), nil
}

// CIDR renders the plan's subnet in CIDR notation.
func (p *Plan) CIDR() string {
	return fmt.Sprintf("%s/%d", FormatIP(p.Network), p.Prefix)
}

// Restore reassembles a Plan from values persisted at VLAN creation.
// Nothing is repartitioned; the stored boundaries are taken as fact.
func Restore(networkAddress string, prefix int, assignableStart, assignableEnd string) (*Plan, error) {
	network, err := ParseIP(networkAddress)
	if err != nil {
		return nil, err
	}
	if prefix < 0 || prefix > 29 {
		return nil, fmt.Errorf("%w: /%d", ErrMalformedMask, prefix)
	}
	start, err := ParseIP(assignableStart)
	if err != nil {
		return nil, err
	}
	end, err := ParseIP(assignableEnd)
	if err != nil {
		return nil, err
	}

	size := uint64(1) << (32 - prefix)
	first := network + 1
	last := network + uint32(size-2)

	reserved := []Range{{Start: first, End: start - 1}}
	if end < last {
		reserved = append(reserved, Range{Start: end + 1, End: last})
	}

	return &Plan{
		Network:         network,
		Prefix:          prefix,
		Gateway:         first,
		ReservedRanges:  reserved,
		AssignableRange: Range{Start: start, End: end},
		TotalHosts:      uint32(size - 2),
		AssignableCount: end - start + 1,
	}, nil
}

// ParseIP parses a dotted-quad IPv4 literal into a host-order uint32.
func ParseIP(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil || strings.Contains(s, ":") {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

// FormatIP renders a host-order uint32 as a dotted quad.
func FormatIP(ip uint32) string {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip)).String()
}

// ParsePrefix normalizes a mask to a prefix length. Accepted forms:
// "/24", "24" and "255.255.255.0". Non-contiguous dotted masks are
// rejected.
func ParsePrefix(mask string) (int, error) {
	s := strings.TrimSpace(mask)
	if s == "" {
		return 0, fmt.Errorf("%w: empty mask", ErrMalformedMask)
	}

	if strings.Contains(s, ".") {
		m, err := ParseIP(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedMask, mask)
		}
		ones := bits.OnesCount32(m)
		if m != prefixMask(ones) {
			return 0, fmt.Errorf("%w: %q is not contiguous", ErrMalformedMask, mask)
		}
		return ones, nil
	}

	s = strings.TrimPrefix(s, "/")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 32 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMask, mask)
	}
	return n, nil
}

// prefixMask returns the netmask for a prefix length as a uint32.
func prefixMask(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefix)
}
