package report

import (
	"testing"
	"time"

	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/storage"
)

type fixture struct {
	store    *storage.SQLiteStore
	reg      *registry.Registry
	reporter *Reporter
	zone     *model.Zone
	vlan     *model.VLAN
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	d, err := store.CreateDomain("MFG", "Manufacturing")
	if err != nil {
		t.Fatalf("Failed to create domain: %v", err)
	}
	vs, err := store.CreateValueStream(d.ID, "BODY", "Body Shop")
	if err != nil {
		t.Fatalf("Failed to create value stream: %v", err)
	}
	z, err := store.CreateZone(vs.ID, "Line 1 Cell", model.SecurityMFZ)
	if err != nil {
		t.Fatalf("Failed to create zone: %v", err)
	}
	v, err := store.CreateVLAN(z.ID, 100, "192.168.1.0", "/24")
	if err != nil {
		t.Fatalf("Failed to create vlan: %v", err)
	}

	reg := registry.New(store)
	return &fixture{
		store:    store,
		reg:      reg,
		reporter: New(store, reg),
		zone:     z,
		vlan:     v,
	}
}

func TestHierarchy(t *testing.T) {
	f := newFixture(t)

	if _, err := f.reg.Assign(f.vlan.ID, "192.168.1.10", "", "plc-01"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	tree, err := f.reporter.Hierarchy()
	if err != nil {
		t.Fatalf("Hierarchy() error = %v", err)
	}

	if len(tree) != 1 {
		t.Fatalf("Expected 1 domain, got %d", len(tree))
	}
	d := tree[0]
	if d.Code != "MFG" || len(d.ValueStreams) != 1 {
		t.Fatalf("Unexpected domain node %+v", d)
	}
	vs := d.ValueStreams[0]
	if vs.Code != "BODY" || len(vs.Zones) != 1 {
		t.Fatalf("Unexpected value stream node %+v", vs)
	}
	z := vs.Zones[0]
	if z.Classification != model.SecurityMFZ || len(z.VLANs) != 1 {
		t.Fatalf("Unexpected zone node %+v", z)
	}
	v := z.VLANs[0]
	if v.Tag != 100 || v.CIDR != "192.168.1.0/24" {
		t.Errorf("Unexpected vlan leaf %+v", v)
	}
	if v.AssignedCount != 1 || v.AssignableCount != 247 {
		t.Errorf("Expected 1/247 occupancy, got %d/%d", v.AssignedCount, v.AssignableCount)
	}
}

func TestCompliance(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Fresh zone with no check at all: overdue.
	rep, err := f.reporter.Compliance(now)
	if err != nil {
		t.Fatalf("Compliance() error = %v", err)
	}
	if rep.TotalZones != 1 || rep.OverdueZones != 1 {
		t.Fatalf("Expected 1/1 overdue, got %d/%d", rep.OverdueZones, rep.TotalZones)
	}
	if !rep.Entries[0].Overdue || rep.Entries[0].LastFirewallCheck != nil {
		t.Errorf("Expected never-checked zone to be overdue, got %+v", rep.Entries[0])
	}

	// Checked 10 days ago: compliant.
	if _, err := f.store.TouchFirewallCheck(f.zone.ID, now.AddDate(0, 0, -10)); err != nil {
		t.Fatalf("TouchFirewallCheck() error = %v", err)
	}
	rep, _ = f.reporter.Compliance(now)
	if rep.OverdueZones != 0 {
		t.Errorf("Expected no overdue zones after recent check, got %d", rep.OverdueZones)
	}

	// Checked exactly 30 days ago: still within the window.
	f.store.TouchFirewallCheck(f.zone.ID, now.AddDate(0, 0, -30))
	rep, _ = f.reporter.Compliance(now)
	if rep.OverdueZones != 0 {
		t.Errorf("Expected 30-day-old check to be compliant, got %d overdue", rep.OverdueZones)
	}

	// Checked 45 days ago: overdue by 15 days.
	f.store.TouchFirewallCheck(f.zone.ID, now.AddDate(0, 0, -45))
	rep, _ = f.reporter.Compliance(now)
	if rep.OverdueZones != 1 {
		t.Fatalf("Expected 1 overdue zone, got %d", rep.OverdueZones)
	}
	if rep.Entries[0].OverdueDays != 15 {
		t.Errorf("Expected 15 days overdue, got %d", rep.Entries[0].OverdueDays)
	}
}

func TestUtilizationReport(t *testing.T) {
	f := newFixture(t)

	for _, ip := range []string{"192.168.1.10", "192.168.1.11", "192.168.1.12"} {
		if _, err := f.reg.Assign(f.vlan.ID, ip, "", "dev-"+ip); err != nil {
			t.Fatalf("Assign(%s) error = %v", ip, err)
		}
	}

	entries, err := f.reporter.Utilization()
	if err != nil {
		t.Fatalf("Utilization() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.VLANTag != 100 || e.CIDR != "192.168.1.0/24" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if e.AssignedCount != 3 || e.AvailableCount != 244 {
		t.Errorf("Expected 3 assigned / 244 available, got %+v", e)
	}
	// 3/247 = 1.2145..., rounded to two decimals.
	if e.Percentage != 1.21 {
		t.Errorf("Expected 1.21%%, got %v", e.Percentage)
	}
}
