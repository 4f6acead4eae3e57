package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mhaustein/ipamd/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestVLAN builds a full hierarchy down to one VLAN and returns it.
func newTestVLAN(t *testing.T, store *SQLiteStore, tag int, network, mask string) *model.VLAN {
	t.Helper()

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
	v, err := store.CreateVLAN(z.ID, tag, network, mask)
	if err != nil {
		t.Fatalf("Failed to create vlan: %v", err)
	}
	return v
}

func TestCreateDomain(t *testing.T) {
	store := newTestStore(t)

	d, err := store.CreateDomain("MFG", "Manufacturing")
	if err != nil {
		t.Fatalf("CreateDomain() error = %v", err)
	}
	if d.ID == "" {
		t.Error("Expected a generated ID")
	}
	if !d.Active {
		t.Error("Expected new domain to be active")
	}

	got, err := store.GetDomain(d.ID)
	if err != nil {
		t.Fatalf("GetDomain() error = %v", err)
	}
	if got.Code != "MFG" || got.Name != "Manufacturing" {
		t.Errorf("GetDomain() = %+v, want code MFG name Manufacturing", got)
	}
}

func TestCreateDomain_CodeValidation(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"minimum length", "AB", true},
		{"maximum length", "ABCDEFGH12", true},
		{"digits allowed", "MFG2", true},
		{"too short", "A", false},
		{"too long", "ABCDEFGHIJK", false},
		{"lowercase", "mfg", false},
		{"hyphen", "MF-G", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateDomain(tt.code, "Test")
			if tt.ok && err != nil {
				t.Errorf("CreateDomain(%q) error = %v, want nil", tt.code, err)
			}
			if !tt.ok && !errors.Is(err, model.ErrInvalidCode) {
				t.Errorf("CreateDomain(%q) error = %v, want ErrInvalidCode", tt.code, err)
			}
		})
	}
}

func TestCreateDomain_DuplicateCode(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.CreateDomain("MFG", "Manufacturing"); err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	if _, err := store.CreateDomain("MFG", "Other"); !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode, got %v", err)
	}
}

func TestDeleteDomain_FreesCode(t *testing.T) {
	store := newTestStore(t)

	d, err := store.CreateDomain("MFG", "Manufacturing")
	if err != nil {
		t.Fatalf("CreateDomain() error = %v", err)
	}
	if err := store.DeleteDomain(d.ID); err != nil {
		t.Fatalf("DeleteDomain() error = %v", err)
	}

	if _, err := store.GetDomain(d.ID); !errors.Is(err, ErrDomainNotFound) {
		t.Errorf("Expected ErrDomainNotFound after delete, got %v", err)
	}

	// Retired codes are reusable.
	if _, err := store.CreateDomain("MFG", "Manufacturing v2"); err != nil {
		t.Errorf("Expected code to be reusable after delete, got %v", err)
	}
}

func TestDeleteDomain_RefusedWithChildren(t *testing.T) {
	store := newTestStore(t)

	d, _ := store.CreateDomain("MFG", "Manufacturing")
	vs, err := store.CreateValueStream(d.ID, "BODY", "Body Shop")
	if err != nil {
		t.Fatalf("CreateValueStream() error = %v", err)
	}

	if err := store.DeleteDomain(d.ID); !errors.Is(err, ErrHasActiveChildren) {
		t.Errorf("Expected ErrHasActiveChildren, got %v", err)
	}

	// After the child goes, the domain can be retired.
	if err := store.DeleteValueStream(vs.ID); err != nil {
		t.Fatalf("DeleteValueStream() error = %v", err)
	}
	if err := store.DeleteDomain(d.ID); err != nil {
		t.Errorf("DeleteDomain() after child removal error = %v", err)
	}
}

func TestCreateValueStream_ParentChecks(t *testing.T) {
	store := newTestStore(t)

	// Missing parent reported before anything else.
	if _, err := store.CreateValueStream("no-such-domain", "BODY", "Body Shop"); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("Expected ErrParentNotFound, got %v", err)
	}

	d, _ := store.CreateDomain("MFG", "Manufacturing")
	if _, err := store.CreateValueStream(d.ID, "BODY", "Body Shop"); err != nil {
		t.Fatalf("CreateValueStream() error = %v", err)
	}
}

func TestCreateValueStream_CodeScopedToDomain(t *testing.T) {
	store := newTestStore(t)

	d1, _ := store.CreateDomain("MFG", "Manufacturing")
	d2, _ := store.CreateDomain("LOG", "Logistics")

	if _, err := store.CreateValueStream(d1.ID, "BODY", "Body Shop"); err != nil {
		t.Fatalf("CreateValueStream() error = %v", err)
	}

	// Same code in the same domain collides.
	if _, err := store.CreateValueStream(d1.ID, "BODY", "Other"); !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode within one domain, got %v", err)
	}

	// Same code in a different domain is fine.
	if _, err := store.CreateValueStream(d2.ID, "BODY", "Body Logistics"); err != nil {
		t.Errorf("Expected code to be reusable across domains, got %v", err)
	}
}

func TestListValueStreams_FilterByDomain(t *testing.T) {
	store := newTestStore(t)

	d1, _ := store.CreateDomain("MFG", "Manufacturing")
	d2, _ := store.CreateDomain("LOG", "Logistics")
	store.CreateValueStream(d1.ID, "BODY", "Body Shop")
	store.CreateValueStream(d1.ID, "PAINT", "Paint Shop")
	store.CreateValueStream(d2.ID, "WH", "Warehouse")

	all, err := store.ListValueStreams("")
	if err != nil {
		t.Fatalf("ListValueStreams() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 value streams, got %d", len(all))
	}

	scoped, err := store.ListValueStreams(d1.ID)
	if err != nil {
		t.Fatalf("ListValueStreams(domain) error = %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("Expected 2 value streams in domain, got %d", len(scoped))
	}
}

func TestCreateZone_ClassificationClosedSet(t *testing.T) {
	store := newTestStore(t)

	d, _ := store.CreateDomain("MFG", "Manufacturing")
	vs, _ := store.CreateValueStream(d.ID, "BODY", "Body Shop")

	for _, st := range model.SecurityTypes() {
		if _, err := store.CreateZone(vs.ID, "Zone "+string(st), st); err != nil {
			t.Errorf("CreateZone(%s) error = %v", st, err)
		}
	}

	if _, err := store.CreateZone(vs.ID, "Bad", model.SecurityType("SL5")); !errors.Is(err, model.ErrInvalidClassification) {
		t.Errorf("Expected ErrInvalidClassification, got %v", err)
	}
	if _, err := store.CreateZone("no-such-stream", "Orphan", model.SecuritySL3); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("Expected ErrParentNotFound, got %v", err)
	}
}

func TestTouchFirewallCheck(t *testing.T) {
	store := newTestStore(t)

	d, _ := store.CreateDomain("MFG", "Manufacturing")
	vs, _ := store.CreateValueStream(d.ID, "BODY", "Body Shop")
	z, _ := store.CreateZone(vs.ID, "Cell", model.SecurityMFZ)

	if z.LastFirewallCheck != nil {
		t.Error("Expected no firewall check on a fresh zone")
	}

	when := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	updated, err := store.TouchFirewallCheck(z.ID, when)
	if err != nil {
		t.Fatalf("TouchFirewallCheck() error = %v", err)
	}
	if updated.LastFirewallCheck == nil || !updated.LastFirewallCheck.Equal(when) {
		t.Errorf("Expected last check %v, got %v", when, updated.LastFirewallCheck)
	}

	if _, err := store.TouchFirewallCheck("no-such-zone", when); !errors.Is(err, ErrZoneNotFound) {
		t.Errorf("Expected ErrZoneNotFound, got %v", err)
	}
}

func TestCreateVLAN_PersistsGeometry(t *testing.T) {
	store := newTestStore(t)

	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	if v.Gateway != "192.168.1.1" {
		t.Errorf("Expected gateway 192.168.1.1, got %s", v.Gateway)
	}
	if v.AssignableStart != "192.168.1.7" || v.AssignableEnd != "192.168.1.253" {
		t.Errorf("Expected assignable 192.168.1.7..253, got %s..%s", v.AssignableStart, v.AssignableEnd)
	}
	if v.AssignableCount != 247 || v.TotalHosts != 254 {
		t.Errorf("Expected counts 247/254, got %d/%d", v.AssignableCount, v.TotalHosts)
	}

	// Round-trips unchanged.
	got, err := store.GetVLAN(v.ID)
	if err != nil {
		t.Fatalf("GetVLAN() error = %v", err)
	}
	if got.AssignableStart != v.AssignableStart || got.AssignableCount != v.AssignableCount {
		t.Errorf("GetVLAN() = %+v, want %+v", got, v)
	}
}

func TestCreateVLAN_Validation(t *testing.T) {
	store := newTestStore(t)

	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	// Tag shape is checked before anything touches the database.
	if _, err := store.CreateVLAN(v.ZoneID, 0, "10.0.0.0", "/24"); !errors.Is(err, model.ErrInvalidTag) {
		t.Errorf("Expected ErrInvalidTag for tag 0, got %v", err)
	}
	if _, err := store.CreateVLAN(v.ZoneID, 4095, "10.0.0.0", "/24"); !errors.Is(err, model.ErrInvalidTag) {
		t.Errorf("Expected ErrInvalidTag for tag 4095, got %v", err)
	}

	if _, err := store.CreateVLAN("no-such-zone", 200, "10.0.0.0", "/24"); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("Expected ErrParentNotFound, got %v", err)
	}

	if _, err := store.CreateVLAN(v.ZoneID, 100, "10.0.0.0", "/24"); !errors.Is(err, ErrDuplicateTag) {
		t.Errorf("Expected ErrDuplicateTag, got %v", err)
	}

	// Partitioner errors pass through untouched.
	if _, err := store.CreateVLAN(v.ZoneID, 200, "10.0.0.0", "/30"); err == nil {
		t.Error("Expected error for /30 subnet")
	}
}

func TestClaimAddress_Conflicts(t *testing.T) {
	store := newTestStore(t)
	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	first := &model.Assignment{
		VLANID:     v.ID,
		IPAddress:  "192.168.1.10",
		MACAddress: "aa:bb:cc:dd:ee:ff",
		DeviceName: "plc-01",
	}
	if err := store.ClaimAddress(first); err != nil {
		t.Fatalf("ClaimAddress() error = %v", err)
	}

	// Same IP, different device.
	err := store.ClaimAddress(&model.Assignment{
		VLANID: v.ID, IPAddress: "192.168.1.10", DeviceName: "plc-02",
	})
	if !errors.Is(err, ErrAddressAssigned) {
		t.Errorf("Expected ErrAddressAssigned, got %v", err)
	}

	// Same MAC, different IP.
	err = store.ClaimAddress(&model.Assignment{
		VLANID: v.ID, IPAddress: "192.168.1.11",
		MACAddress: "aa:bb:cc:dd:ee:ff", DeviceName: "plc-03",
	})
	if !errors.Is(err, ErrMACAssigned) {
		t.Errorf("Expected ErrMACAssigned, got %v", err)
	}

	// Two assignments without MACs never collide on the MAC index.
	for i, ip := range []string{"192.168.1.20", "192.168.1.21"} {
		err := store.ClaimAddress(&model.Assignment{
			VLANID: v.ID, IPAddress: ip, DeviceName: fmt.Sprintf("hmi-%02d", i),
		})
		if err != nil {
			t.Errorf("ClaimAddress(no MAC) error = %v", err)
		}
	}
}

func TestClaimAddress_ConcurrentSingleWinner(t *testing.T) {
	store := newTestStore(t)
	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	const contenders = 16

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		winner int
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.ClaimAddress(&model.Assignment{
				VLANID:     v.ID,
				IPAddress:  "192.168.1.50",
				DeviceName: fmt.Sprintf("robot-%02d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winner++
			} else {
				errs = append(errs, err)
			}
		}(i)
	}
	wg.Wait()

	if winner != 1 {
		t.Fatalf("Expected exactly 1 winner, got %d", winner)
	}
	for _, err := range errs {
		if !errors.Is(err, ErrAddressAssigned) {
			t.Errorf("Loser saw %v, want ErrAddressAssigned", err)
		}
	}

	nums, err := store.ActiveAddressNums(v.ID, 0, ^uint32(0))
	if err != nil {
		t.Fatalf("ActiveAddressNums() error = %v", err)
	}
	if len(nums) != 1 {
		t.Errorf("Expected 1 active row, got %d", len(nums))
	}
}

func TestReleaseAssignment_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	a := &model.Assignment{
		VLANID: v.ID, IPAddress: "192.168.1.10",
		MACAddress: "aa:bb:cc:dd:ee:ff", DeviceName: "plc-01",
	}
	if err := store.ClaimAddress(a); err != nil {
		t.Fatalf("ClaimAddress() error = %v", err)
	}

	released := time.Now().UTC()
	if err := store.ReleaseAssignment(a.ID, released); err != nil {
		t.Fatalf("ReleaseAssignment() error = %v", err)
	}

	// Release is idempotent.
	if err := store.ReleaseAssignment(a.ID, released); err != nil {
		t.Errorf("Second release error = %v, want nil", err)
	}
	if err := store.ReleaseAssignment("no-such-assignment", released); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("Expected ErrAssignmentNotFound, got %v", err)
	}

	// The row stays behind for audit.
	got, err := store.GetAssignment(a.ID)
	if err != nil {
		t.Fatalf("GetAssignment() error = %v", err)
	}
	if got.Active || got.ReleasedAt == nil {
		t.Errorf("Expected released audit row, got %+v", got)
	}

	// Both the IP and the MAC are immediately reusable.
	again := &model.Assignment{
		VLANID: v.ID, IPAddress: "192.168.1.10",
		MACAddress: "aa:bb:cc:dd:ee:ff", DeviceName: "plc-01-replacement",
	}
	if err := store.ClaimAddress(again); err != nil {
		t.Fatalf("Reclaim after release error = %v", err)
	}

	// Listing: active only by default, audit rows on request.
	active, _ := store.ListAssignments(v.ID, false)
	if len(active) != 1 {
		t.Errorf("Expected 1 active assignment, got %d", len(active))
	}
	all, _ := store.ListAssignments(v.ID, true)
	if len(all) != 2 {
		t.Errorf("Expected 2 assignments including released, got %d", len(all))
	}
}

func TestActiveAddressNums_Ordering(t *testing.T) {
	store := newTestStore(t)
	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	// Claim out of order.
	for i, ip := range []string{"192.168.1.30", "192.168.1.8", "192.168.1.15"} {
		err := store.ClaimAddress(&model.Assignment{
			VLANID: v.ID, IPAddress: ip, DeviceName: fmt.Sprintf("dev-%d", i),
		})
		if err != nil {
			t.Fatalf("ClaimAddress(%s) error = %v", ip, err)
		}
	}

	nums, err := store.ActiveAddressNums(v.ID, 0, ^uint32(0))
	if err != nil {
		t.Fatalf("ActiveAddressNums() error = %v", err)
	}
	if len(nums) != 3 {
		t.Fatalf("Expected 3 addresses, got %d", len(nums))
	}
	for i := 1; i < len(nums); i++ {
		if nums[i] <= nums[i-1] {
			t.Errorf("Addresses not ascending: %v", nums)
		}
	}

	count, err := store.CountActiveAssignments(v.ID)
	if err != nil {
		t.Fatalf("CountActiveAssignments() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}

func TestUtilizationSnapshots(t *testing.T) {
	store := newTestStore(t)
	v := newTestVLAN(t, store, 100, "192.168.1.0", "/24")

	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	for _, snap := range []model.UtilizationSnapshot{
		{VLANID: v.ID, VLANTag: v.Tag, AssignableCount: 247, AssignedCount: 10, Percentage: 4.05, TakenAt: older},
		{VLANID: v.ID, VLANTag: v.Tag, AssignableCount: 247, AssignedCount: 12, Percentage: 4.86, TakenAt: newer},
	} {
		s := snap
		if err := store.SaveUtilizationSnapshot(&s); err != nil {
			t.Fatalf("SaveUtilizationSnapshot() error = %v", err)
		}
	}

	latest, err := store.LatestUtilizationSnapshots()
	if err != nil {
		t.Fatalf("LatestUtilizationSnapshots() error = %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("Expected 1 latest snapshot, got %d", len(latest))
	}
	if latest[0].AssignedCount != 12 {
		t.Errorf("Expected latest snapshot with 12 assigned, got %d", latest[0].AssignedCount)
	}
}
