package model

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidCode is returned when a domain or value stream code does
	// not match the required shape.
	ErrInvalidCode = errors.New("invalid code")

	// ErrInvalidClassification is returned when a zone classification is
	// not one of the known security types.
	ErrInvalidClassification = errors.New("invalid security classification")
)

// domain and value stream codes: 2-10 uppercase alphanumerics
var codePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// ValidCode reports whether s is an acceptable domain or value stream code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// SecurityType classifies a zone according to the factory security model.
type SecurityType string

const (
	SecuritySL3  SecurityType = "SL3"      // secure backbone
	SecurityMFZ  SecurityType = "MFZ_SL4"  // manufacturing zone
	SecurityLOG  SecurityType = "LOG_SL4"  // logistics zone
	SecurityFMZ  SecurityType = "FMZ_SL4"  // facility zone
	SecurityENG  SecurityType = "ENG_SL4"  // engineering zone
	SecurityLRSZ SecurityType = "LRSZ_SL4" // local restricted zone
	SecurityRSZ  SecurityType = "RSZ_SL4"  // restricted zone
)

// SecurityTypes lists every valid zone classification.
func SecurityTypes() []SecurityType {
	return []SecurityType{
		SecuritySL3, SecurityMFZ, SecurityLOG, SecurityFMZ,
		SecurityENG, SecurityLRSZ, SecurityRSZ,
	}
}

// Valid reports whether the security type is a member of the closed set.
func (s SecurityType) Valid() bool {
	switch s {
	case SecuritySL3, SecurityMFZ, SecurityLOG, SecurityFMZ,
		SecurityENG, SecurityLRSZ, SecurityRSZ:
		return true
	}
	return false
}

// Domain is the top-level organizational unit (e.g. MFG, LOG, FCM, ENG).
type Domain struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValueStream is an operational area within a domain (e.g. a production
// line). Codes are unique within the owning domain only.
type ValueStream struct {
	ID        string    `json:"id"`
	DomainID  string    `json:"domain_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone is a security zone within a value stream. LastFirewallCheck is the
// only mutable field after creation and feeds the compliance report.
type Zone struct {
	ID                string       `json:"id"`
	ValueStreamID     string       `json:"value_stream_id"`
	Name              string       `json:"name"`
	Classification    SecurityType `json:"classification"`
	LastFirewallCheck *time.Time   `json:"last_firewall_check,omitempty"`
	Active            bool         `json:"active"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
