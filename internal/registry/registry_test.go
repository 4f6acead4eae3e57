package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *model.VLAN) {
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

	return New(store), v
}

func TestAssign(t *testing.T) {
	reg, v := newTestRegistry(t)

	a, err := reg.Assign(v.ID, "192.168.1.10", "AA-BB-CC-DD-EE-FF", "plc-01")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if a.ID == "" || !a.Active {
		t.Errorf("Expected active assignment with ID, got %+v", a)
	}
	if a.MACAddress != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Expected canonical MAC aa:bb:cc:dd:ee:ff, got %s", a.MACAddress)
	}
}

func TestAssign_RejectsReservedAndForeign(t *testing.T) {
	reg, v := newTestRegistry(t)

	tests := []struct {
		name    string
		ip      string
		wantErr error
	}{
		{"gateway", "192.168.1.1", ErrAddressReserved},
		{"management block", "192.168.1.4", ErrAddressReserved},
		{"last leading reserved", "192.168.1.6", ErrAddressReserved},
		{"trailing reserved", "192.168.1.254", ErrAddressReserved},
		{"network base", "192.168.1.0", ErrAddressReserved},
		{"broadcast", "192.168.1.255", ErrAddressReserved},
		{"different subnet", "192.168.2.10", ErrAddressNotInVLAN},
		{"far away", "10.1.2.3", ErrAddressNotInVLAN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Assign(v.ID, tt.ip, "", "device")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Assign(%s) error = %v, want %v", tt.ip, err, tt.wantErr)
			}
		})
	}

	// Rejection leaves nothing behind; the boundary addresses still work.
	if _, err := reg.Assign(v.ID, "192.168.1.7", "", "first"); err != nil {
		t.Errorf("Assign(first assignable) error = %v", err)
	}
	if _, err := reg.Assign(v.ID, "192.168.1.253", "", "last"); err != nil {
		t.Errorf("Assign(last assignable) error = %v", err)
	}
}

func TestAssign_InvalidInput(t *testing.T) {
	reg, v := newTestRegistry(t)

	if _, err := reg.Assign(v.ID, "not-an-ip", "", "device"); err == nil {
		t.Error("Expected error for malformed IP")
	}
	if _, err := reg.Assign(v.ID, "192.168.1.10", "zz:zz:zz:zz:zz:zz", "device"); !errors.Is(err, model.ErrMalformedMAC) {
		t.Errorf("Expected ErrMalformedMAC, got %v", err)
	}
	if _, err := reg.Assign("no-such-vlan", "192.168.1.10", "", "device"); !errors.Is(err, storage.ErrVLANNotFound) {
		t.Errorf("Expected ErrVLANNotFound, got %v", err)
	}
}

func TestAssign_MACVariantsCollide(t *testing.T) {
	reg, v := newTestRegistry(t)

	if _, err := reg.Assign(v.ID, "192.168.1.10", "aa:bb:cc:dd:ee:ff", "plc-01"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	// The same hardware address in any spelling must collide.
	for _, mac := range []string{"AA:BB:CC:DD:EE:FF", "aa-bb-cc-dd-ee-ff", "aabb.ccdd.eeff"} {
		_, err := reg.Assign(v.ID, "192.168.1.11", mac, "plc-02")
		if !errors.Is(err, storage.ErrMACAssigned) {
			t.Errorf("Assign(mac %q) error = %v, want ErrMACAssigned", mac, err)
		}
	}
}

func TestAssign_ConcurrentSingleWinner(t *testing.T) {
	reg, v := newTestRegistry(t)

	const contenders = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*model.Assignment
		losers  int
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := reg.Assign(v.ID, "192.168.1.42", "", fmt.Sprintf("robot-%02d", i))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, a)
				return
			}
			if !errors.Is(err, storage.ErrAddressAssigned) {
				t.Errorf("Loser saw %v, want ErrAddressAssigned", err)
			}
			losers++
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("Expected exactly 1 winner, got %d", len(winners))
	}
	if losers != contenders-1 {
		t.Errorf("Expected %d losers, got %d", contenders-1, losers)
	}
}

func TestRelease_FreesAddressForReuse(t *testing.T) {
	reg, v := newTestRegistry(t)

	a, err := reg.Assign(v.ID, "192.168.1.10", "aa:bb:cc:dd:ee:ff", "plc-01")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	released, err := reg.Release(a.ID)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if released.Active || released.ReleasedAt == nil {
		t.Errorf("Expected inactive assignment with release time, got %+v", released)
	}

	// Same address and MAC, new tenant.
	if _, err := reg.Assign(v.ID, "192.168.1.10", "aa:bb:cc:dd:ee:ff", "plc-01b"); err != nil {
		t.Errorf("Assign() after release error = %v", err)
	}

	if _, err := reg.Release("no-such-assignment"); !errors.Is(err, storage.ErrAssignmentNotFound) {
		t.Errorf("Expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestNextFree(t *testing.T) {
	reg, v := newTestRegistry(t)

	// Empty VLAN: the first assignable address.
	ip, err := reg.NextFree(v.ID)
	if err != nil {
		t.Fatalf("NextFree() error = %v", err)
	}
	if ip != "192.168.1.7" {
		t.Errorf("Expected 192.168.1.7, got %s", ip)
	}

	// Fill the front, leave a gap at .9.
	for _, addr := range []string{"192.168.1.7", "192.168.1.8", "192.168.1.10"} {
		if _, err := reg.Assign(v.ID, addr, "", "dev-"+addr); err != nil {
			t.Fatalf("Assign(%s) error = %v", addr, err)
		}
	}

	ip, err = reg.NextFree(v.ID)
	if err != nil {
		t.Fatalf("NextFree() error = %v", err)
	}
	if ip != "192.168.1.9" {
		t.Errorf("Expected gap address 192.168.1.9, got %s", ip)
	}
}

func TestNextFree_Exhausted(t *testing.T) {
	store, err := storage.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	d, _ := store.CreateDomain("MFG", "Manufacturing")
	vs, _ := store.CreateValueStream(d.ID, "BODY", "Body Shop")
	z, _ := store.CreateZone(vs.ID, "Cell", model.SecurityMFZ)

	// A /29 has exactly one assignable address.
	v, err := store.CreateVLAN(z.ID, 100, "192.168.1.0", "/29")
	if err != nil {
		t.Fatalf("CreateVLAN() error = %v", err)
	}

	reg := New(store)

	ip, err := reg.NextFree(v.ID)
	if err != nil {
		t.Fatalf("NextFree() error = %v", err)
	}
	if ip != "192.168.1.7" {
		t.Errorf("Expected 192.168.1.7, got %s", ip)
	}

	if _, err := reg.Assign(v.ID, ip, "", "only-device"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	if _, err := reg.NextFree(v.ID); !errors.Is(err, ErrVLANExhausted) {
		t.Errorf("Expected ErrVLANExhausted, got %v", err)
	}
}

func TestUtilization(t *testing.T) {
	reg, v := newTestRegistry(t)

	u, err := reg.Utilization(v.ID)
	if err != nil {
		t.Fatalf("Utilization() error = %v", err)
	}
	if u.AssignedCount != 0 || u.Percentage != 0 {
		t.Errorf("Expected empty utilization, got %+v", u)
	}
	if u.AvailableCount != 247 {
		t.Errorf("Expected 247 available, got %d", u.AvailableCount)
	}

	for i := 0; i < 10; i++ {
		ip := fmt.Sprintf("192.168.1.%d", 10+i)
		if _, err := reg.Assign(v.ID, ip, "", fmt.Sprintf("dev-%02d", i)); err != nil {
			t.Fatalf("Assign(%s) error = %v", ip, err)
		}
	}

	u, err = reg.Utilization(v.ID)
	if err != nil {
		t.Fatalf("Utilization() error = %v", err)
	}
	if u.AssignedCount != 10 || u.AvailableCount != 237 {
		t.Errorf("Expected 10 assigned / 237 available, got %+v", u)
	}
	// 10/247 = 4.0485..., rounded to two decimals.
	if u.Percentage != 4.05 {
		t.Errorf("Expected 4.05%%, got %v", u.Percentage)
	}
}

func TestPreview_DoesNotPersist(t *testing.T) {
	reg, _ := newTestRegistry(t)

	plan, err := reg.Preview("10.50.0.0", "255.255.252.0")
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if plan.CIDR() != "10.50.0.0/22" {
		t.Errorf("Expected 10.50.0.0/22, got %s", plan.CIDR())
	}
	if plan.AssignableCount != 1015 {
		t.Errorf("Expected 1015 assignable, got %d", plan.AssignableCount)
	}
}
