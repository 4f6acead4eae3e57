package model

import (
	"errors"
	"strings"
	"time"
)

// ErrMalformedMAC is returned when a MAC address cannot be normalized.
var ErrMalformedMAC = errors.New("malformed MAC address")

// Assignment binds one IP address inside a VLAN to a named device.
// Released assignments stay in the store with Active=false as an audit
// trail; only active rows occupy an address.
type Assignment struct {
	ID         string     `json:"id"`
	VLANID     string     `json:"vlan_id"`
	IPAddress  string     `json:"ip_address"`
	MACAddress string     `json:"mac_address,omitempty"`
	DeviceName string     `json:"device_name"`
	Active     bool       `json:"active"`
	AssignedAt time.Time  `json:"assigned_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// NormalizeMAC canonicalizes a MAC address to lower-case colon-separated
// form so the store-level uniqueness constraint cannot be sidestepped by
// case or separator variants. An empty string passes through (MAC is
// optional on assignments).
func NormalizeMAC(mac string) (string, error) {
	if mac == "" {
		return "", nil
	}

	hex := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'f':
			return r
		case r >= 'A' && r <= 'F':
			return r + ('a' - 'A')
		case r == ':' || r == '-' || r == '.':
			return -1
		}
		return 'x' // poisons the string, caught below
	}, mac)

	if len(hex) != 12 || strings.ContainsRune(hex, 'x') {
		return "", ErrMalformedMAC
	}

	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	return b.String(), nil
}
