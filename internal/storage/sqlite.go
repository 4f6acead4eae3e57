package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mhaustein/ipamd/internal/ipcalc"
	"github.com/mhaustein/ipamd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore implements Store with a SQLite backend.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if necessary) the database under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "ipamd.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	_, err = s.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DatabasePath returns the database file path.
func (s *SQLiteStore) DatabasePath() string {
	return s.path
}

// generateID returns a UUIDv7 so identifiers sort by creation time.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// mapConstraintErr translates unique-index violations into sentinel
// errors. SQLite reports them as "UNIQUE constraint failed:
// <table>.<column>", naming the indexed columns rather than the index.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	switch {
	case strings.Contains(msg, "assignments.ip_address"):
		return ErrAddressAssigned
	case strings.Contains(msg, "assignments.mac_address"):
		return ErrMACAssigned
	case strings.Contains(msg, "domains.code"),
		strings.Contains(msg, "value_streams."):
		return ErrDuplicateCode
	case strings.Contains(msg, "vlans.vlan_tag"):
		return ErrDuplicateTag
	}
	return err
}

// Domains

// CreateDomain adds a new top-level domain. The code must be 2-10
// uppercase alphanumerics and unique among active domains.
func (s *SQLiteStore) CreateDomain(code, name string) (*model.Domain, error) {
	if !model.ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidCode, code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d := &model.Domain{
		ID:        generateID(),
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT INTO domains (id, code, name, active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, d.ID, d.Code, d.Name, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, mapConstraintErr(err)
	}

	return d, nil
}

// GetDomain retrieves an active domain by ID.
func (s *SQLiteStore) GetDomain(id string) (*model.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDomain(id)
}

func (s *SQLiteStore) getDomain(id string) (*model.Domain, error) {
	var d model.Domain
	err := s.db.QueryRow(`
		SELECT id, code, name, active, created_at, updated_at
		FROM domains WHERE id = ? AND active = 1
	`, id).Scan(&d.ID, &d.Code, &d.Name, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying domain: %w", err)
	}
	return &d, nil
}

// ListDomains returns all active domains ordered by code.
func (s *SQLiteStore) ListDomains() ([]model.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, code, name, active, created_at, updated_at
		FROM domains WHERE active = 1 ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("querying domains: %w", err)
	}
	defer rows.Close()

	var domains []model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// DeleteDomain retires a domain. Refused while the domain still owns
// active value streams; the row itself is kept inactive so history and
// foreign keys stay intact, and the code becomes reusable.
func (s *SQLiteStore) DeleteDomain(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM domains WHERE id = ? AND active = 1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking domain: %w", err)
	}
	if !exists {
		return ErrDomainNotFound
	}

	var children int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM value_streams WHERE domain_id = ? AND active = 1`, id).Scan(&children); err != nil {
		return fmt.Errorf("counting value streams: %w", err)
	}
	if children > 0 {
		return ErrHasActiveChildren
	}

	if _, err := tx.Exec(`UPDATE domains SET active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("retiring domain: %w", err)
	}

	return tx.Commit()
}

// Value streams

// CreateValueStream adds a value stream under a domain. The parent is
// checked first; codes are unique only within the owning domain.
func (s *SQLiteStore) CreateValueStream(domainID, code, name string) (*model.ValueStream, error) {
	if !model.ValidCode(code) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidCode, code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getDomain(domainID); err != nil {
		return nil, ErrParentNotFound
	}

	now := time.Now().UTC()
	vs := &model.ValueStream{
		ID:        generateID(),
		DomainID:  domainID,
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT INTO value_streams (id, domain_id, code, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`, vs.ID, vs.DomainID, vs.Code, vs.Name, vs.CreatedAt, vs.UpdatedAt)
	if err != nil {
		return nil, mapConstraintErr(err)
	}

	return vs, nil
}

// GetValueStream retrieves an active value stream by ID.
func (s *SQLiteStore) GetValueStream(id string) (*model.ValueStream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getValueStream(id)
}

func (s *SQLiteStore) getValueStream(id string) (*model.ValueStream, error) {
	var vs model.ValueStream
	err := s.db.QueryRow(`
		SELECT id, domain_id, code, name, active, created_at, updated_at
		FROM value_streams WHERE id = ? AND active = 1
	`, id).Scan(&vs.ID, &vs.DomainID, &vs.Code, &vs.Name, &vs.Active, &vs.CreatedAt, &vs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrValueStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying value stream: %w", err)
	}
	return &vs, nil
}

// ListValueStreams returns active value streams, optionally scoped to a
// domain.
func (s *SQLiteStore) ListValueStreams(domainID string) ([]model.ValueStream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, domain_id, code, name, active, created_at, updated_at
		FROM value_streams WHERE active = 1
	`
	args := []interface{}{}
	if domainID != "" {
		query += " AND domain_id = ?"
		args = append(args, domainID)
	}
	query += " ORDER BY code"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying value streams: %w", err)
	}
	defer rows.Close()

	var streams []model.ValueStream
	for rows.Next() {
		var vs model.ValueStream
		if err := rows.Scan(&vs.ID, &vs.DomainID, &vs.Code, &vs.Name, &vs.Active, &vs.CreatedAt, &vs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning value stream: %w", err)
		}
		streams = append(streams, vs)
	}
	return streams, rows.Err()
}

// DeleteValueStream retires a value stream unless it still owns active
// zones.
func (s *SQLiteStore) DeleteValueStream(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM value_streams WHERE id = ? AND active = 1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking value stream: %w", err)
	}
	if !exists {
		return ErrValueStreamNotFound
	}

	var children int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM zones WHERE value_stream_id = ? AND active = 1`, id).Scan(&children); err != nil {
		return fmt.Errorf("counting zones: %w", err)
	}
	if children > 0 {
		return ErrHasActiveChildren
	}

	if _, err := tx.Exec(`UPDATE value_streams SET active = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("retiring value stream: %w", err)
	}

	return tx.Commit()
}

// Zones

// CreateZone adds a security zone under a value stream. The
// classification must be a member of the closed set; unknown values are
// rejected, never coerced.
func (s *SQLiteStore) CreateZone(valueStreamID, name string, classification model.SecurityType) (*model.Zone, error) {
	if !classification.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidClassification, classification)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getValueStream(valueStreamID); err != nil {
		return nil, ErrParentNotFound
	}

	now := time.Now().UTC()
	z := &model.Zone{
		ID:             generateID(),
		ValueStreamID:  valueStreamID,
		Name:           name,
		Classification: classification,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.db.Exec(`
		INSERT INTO zones (id, value_stream_id, name, classification, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`, z.ID, z.ValueStreamID, z.Name, string(z.Classification), z.CreatedAt, z.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting zone: %w", err)
	}

	return z, nil
}

// GetZone retrieves an active zone by ID.
func (s *SQLiteStore) GetZone(id string) (*model.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getZone(id)
}

func (s *SQLiteStore) getZone(id string) (*model.Zone, error) {
	var (
		z       model.Zone
		checked sql.NullTime
	)
	err := s.db.QueryRow(`
		SELECT id, value_stream_id, name, classification, last_firewall_check, active, created_at, updated_at
		FROM zones WHERE id = ? AND active = 1
	`, id).Scan(&z.ID, &z.ValueStreamID, &z.Name, &z.Classification, &checked, &z.Active, &z.CreatedAt, &z.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying zone: %w", err)
	}
	if checked.Valid {
		t := checked.Time
		z.LastFirewallCheck = &t
	}
	return &z, nil
}

// ListZones returns active zones, optionally scoped to a value stream.
func (s *SQLiteStore) ListZones(valueStreamID string) ([]model.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, value_stream_id, name, classification, last_firewall_check, active, created_at, updated_at
		FROM zones WHERE active = 1
	`
	args := []interface{}{}
	if valueStreamID != "" {
		query += " AND value_stream_id = ?"
		args = append(args, valueStreamID)
	}
	query += " ORDER BY name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var (
			z       model.Zone
			checked sql.NullTime
		)
		if err := rows.Scan(&z.ID, &z.ValueStreamID, &z.Name, &z.Classification, &checked, &z.Active, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning zone: %w", err)
		}
		if checked.Valid {
			t := checked.Time
			z.LastFirewallCheck = &t
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// TouchFirewallCheck records that the zone's firewall rules were
// reviewed at the given time.
func (s *SQLiteStore) TouchFirewallCheck(zoneID string, when time.Time) (*model.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE zones SET last_firewall_check = ?, updated_at = ? WHERE id = ? AND active = 1
	`, when.UTC(), time.Now().UTC(), zoneID)
	if err != nil {
		return nil, fmt.Errorf("updating firewall check: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrZoneNotFound
	}

	return s.getZone(zoneID)
}

// VLANs

// CreateVLAN adds a VLAN under a zone. This is the single place the
// subnet partitioner runs; the computed geometry is persisted on the row
// and treated as read-only fact from then on.
func (s *SQLiteStore) CreateVLAN(zoneID string, tag int, networkAddress, mask string) (*model.VLAN, error) {
	if !model.ValidVLANTag(tag) {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidTag, tag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getZone(zoneID); err != nil {
		return nil, ErrParentNotFound
	}

	var taken bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM vlans WHERE vlan_tag = ? AND active = 1)`, tag).Scan(&taken); err != nil {
		return nil, fmt.Errorf("checking vlan tag: %w", err)
	}
	if taken {
		return nil, ErrDuplicateTag
	}

	plan, err := ipcalc.Partition(networkAddress, mask)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	v := &model.VLAN{
		ID:              generateID(),
		ZoneID:          zoneID,
		Tag:             tag,
		NetworkAddress:  ipcalc.FormatIP(plan.Network),
		PrefixLength:    plan.Prefix,
		Gateway:         ipcalc.FormatIP(plan.Gateway),
		AssignableStart: ipcalc.FormatIP(plan.AssignableRange.Start),
		AssignableEnd:   ipcalc.FormatIP(plan.AssignableRange.End),
		TotalHosts:      plan.TotalHosts,
		AssignableCount: plan.AssignableCount,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = s.db.Exec(`
		INSERT INTO vlans (id, zone_id, vlan_tag, network_address, prefix_length, gateway,
			assignable_start, assignable_end, assignable_start_num, assignable_end_num,
			total_hosts, assignable_count, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, v.ID, v.ZoneID, v.Tag, v.NetworkAddress, v.PrefixLength, v.Gateway,
		v.AssignableStart, v.AssignableEnd,
		int64(plan.AssignableRange.Start), int64(plan.AssignableRange.End),
		int64(v.TotalHosts), int64(v.AssignableCount), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return nil, mapConstraintErr(err)
	}

	return v, nil
}

// GetVLAN retrieves an active VLAN by ID.
func (s *SQLiteStore) GetVLAN(id string) (*model.VLAN, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getVLAN(id)
}

func (s *SQLiteStore) getVLAN(id string) (*model.VLAN, error) {
	var (
		v                      model.VLAN
		totalHosts, assignable int64
	)
	err := s.db.QueryRow(`
		SELECT id, zone_id, vlan_tag, network_address, prefix_length, gateway,
			assignable_start, assignable_end, total_hosts, assignable_count,
			active, created_at, updated_at
		FROM vlans WHERE id = ? AND active = 1
	`, id).Scan(&v.ID, &v.ZoneID, &v.Tag, &v.NetworkAddress, &v.PrefixLength, &v.Gateway,
		&v.AssignableStart, &v.AssignableEnd, &totalHosts, &assignable,
		&v.Active, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrVLANNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying vlan: %w", err)
	}
	v.TotalHosts = uint32(totalHosts)
	v.AssignableCount = uint32(assignable)
	return &v, nil
}

// ListVLANs returns active VLANs, optionally filtered.
func (s *SQLiteStore) ListVLANs(filter *model.VLANFilter) ([]model.VLAN, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, zone_id, vlan_tag, network_address, prefix_length, gateway,
			assignable_start, assignable_end, total_hosts, assignable_count,
			active, created_at, updated_at
		FROM vlans WHERE active = 1
	`
	args := []interface{}{}
	if filter != nil && filter.ZoneID != "" {
		query += " AND zone_id = ?"
		args = append(args, filter.ZoneID)
	}
	query += " ORDER BY vlan_tag"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vlans: %w", err)
	}
	defer rows.Close()

	var vlans []model.VLAN
	for rows.Next() {
		var (
			v                      model.VLAN
			totalHosts, assignable int64
		)
		if err := rows.Scan(&v.ID, &v.ZoneID, &v.Tag, &v.NetworkAddress, &v.PrefixLength, &v.Gateway,
			&v.AssignableStart, &v.AssignableEnd, &totalHosts, &assignable,
			&v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning vlan: %w", err)
		}
		v.TotalHosts = uint32(totalHosts)
		v.AssignableCount = uint32(assignable)
		vlans = append(vlans, v)
	}
	return vlans, rows.Err()
}

// Assignments

// ClaimAddress persists a new active assignment. The whole
// check-and-claim collapses into this one INSERT: the partial unique
// indexes on active IP and MAC decide the winner under concurrency, so
// a conflicting caller gets an error and no partial state.
func (s *SQLiteStore) ClaimAddress(a *model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ipNum, err := ipcalc.ParseIP(a.IPAddress)
	if err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = generateID()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	a.Active = true

	var mac interface{}
	if a.MACAddress != "" {
		mac = a.MACAddress
	}

	_, err = s.db.Exec(`
		INSERT INTO assignments (id, vlan_id, ip_address, ip_num, mac_address, device_name, active, assigned_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	`, a.ID, a.VLANID, a.IPAddress, int64(ipNum), mac, a.DeviceName, a.AssignedAt)
	if err != nil {
		return mapConstraintErr(err)
	}

	return nil
}

// GetAssignment retrieves an assignment (active or released) by ID.
func (s *SQLiteStore) GetAssignment(id string) (*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		a        model.Assignment
		mac      sql.NullString
		released sql.NullTime
	)
	err := s.db.QueryRow(`
		SELECT id, vlan_id, ip_address, mac_address, device_name, active, assigned_at, released_at
		FROM assignments WHERE id = ?
	`, id).Scan(&a.ID, &a.VLANID, &a.IPAddress, &mac, &a.DeviceName, &a.Active, &a.AssignedAt, &released)
	if err == sql.ErrNoRows {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying assignment: %w", err)
	}
	a.MACAddress = mac.String
	if released.Valid {
		t := released.Time
		a.ReleasedAt = &t
	}
	return &a, nil
}

// ListAssignments returns a VLAN's assignments in address order.
// Released rows are included only on request; they are audit history,
// not occupancy.
func (s *SQLiteStore) ListAssignments(vlanID string, includeReleased bool) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, vlan_id, ip_address, mac_address, device_name, active, assigned_at, released_at
		FROM assignments WHERE vlan_id = ?
	`
	if !includeReleased {
		query += " AND active = 1"
	}
	query += " ORDER BY ip_num, assigned_at"

	rows, err := s.db.Query(query, vlanID)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var (
			a        model.Assignment
			mac      sql.NullString
			released sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.VLANID, &a.IPAddress, &mac, &a.DeviceName, &a.Active, &a.AssignedAt, &released); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		a.MACAddress = mac.String
		if released.Valid {
			t := released.Time
			a.ReleasedAt = &t
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ReleaseAssignment marks an assignment inactive, freeing its address.
// The row is retained for audit. Releasing an already-released
// assignment is a no-op.
func (s *SQLiteStore) ReleaseAssignment(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE assignments SET active = 0, released_at = ? WHERE id = ? AND active = 1
	`, when.UTC(), id)
	if err != nil {
		return fmt.Errorf("releasing assignment: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM assignments WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking assignment: %w", err)
		}
		if !exists {
			return ErrAssignmentNotFound
		}
	}

	return nil
}

// ActiveAddressNums returns the numeric addresses of active assignments
// within [startNum, endNum], ascending. The result is proportional to
// the number of assignments, never to the subnet size.
func (s *SQLiteStore) ActiveAddressNums(vlanID string, startNum, endNum uint32) ([]uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT ip_num FROM assignments
		WHERE vlan_id = ? AND active = 1 AND ip_num BETWEEN ? AND ?
		ORDER BY ip_num
	`, vlanID, int64(startNum), int64(endNum))
	if err != nil {
		return nil, fmt.Errorf("querying active addresses: %w", err)
	}
	defer rows.Close()

	var nums []uint32
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning address: %w", err)
		}
		nums = append(nums, uint32(n))
	}
	return nums, rows.Err()
}

// CountActiveAssignments returns the number of active assignments in a
// VLAN.
func (s *SQLiteStore) CountActiveAssignments(vlanID string) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM assignments WHERE vlan_id = ? AND active = 1
	`, vlanID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting assignments: %w", err)
	}
	return uint32(count), nil
}

// Utilization snapshots

// SaveUtilizationSnapshot appends an audit snapshot.
func (s *SQLiteStore) SaveUtilizationSnapshot(snap *model.UtilizationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO utilization_snapshots (vlan_id, vlan_tag, assignable_count, assigned_count, percentage, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.VLANID, snap.VLANTag, int64(snap.AssignableCount), int64(snap.AssignedCount), snap.Percentage, snap.TakenAt)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// LatestUtilizationSnapshots returns the most recent snapshot per VLAN.
func (s *SQLiteStore) LatestUtilizationSnapshots() ([]model.UtilizationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Snapshots are append-only, so the highest rowid per VLAN is the
	// newest. Joining on it keeps taken_at a plain column scan.
	rows, err := s.db.Query(`
		SELECT u.vlan_id, u.vlan_tag, u.assignable_count, u.assigned_count, u.percentage, u.taken_at
		FROM utilization_snapshots u
		JOIN (
			SELECT vlan_id, MAX(id) AS id
			FROM utilization_snapshots
			GROUP BY vlan_id
		) latest ON u.id = latest.id
		ORDER BY u.vlan_tag
	`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.UtilizationSnapshot
	for rows.Next() {
		var (
			snap                 model.UtilizationSnapshot
			assignable, assigned int64
		)
		if err := rows.Scan(&snap.VLANID, &snap.VLANTag, &assignable, &assigned, &snap.Percentage, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.AssignableCount = uint32(assignable)
		snap.AssignedCount = uint32(assigned)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
