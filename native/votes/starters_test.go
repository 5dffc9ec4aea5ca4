package votes

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestStarterSetMembership(t *testing.T) {
	e, _ := newTestEngine(t)

	ok, err := e.IsAuthorizedStarter(addr(1), NetworkMainnet)
	if err != nil || ok {
		t.Fatalf("empty set membership = %v, %v", ok, err)
	}

	seedStarter(t, e, NetworkMainnet, 1)
	seedStarter(t, e, NetworkMainnet, 1)
	seedStarter(t, e, NetworkMainnet, 3)

	starters, err := e.Starters(NetworkMainnet)
	if err != nil {
		t.Fatalf("starters: %v", err)
	}
	if len(starters) != 2 {
		t.Fatalf("duplicate registration must not grow the set: %v", starters)
	}

	ok, err = e.IsAuthorizedStarter(addr(1), NetworkMainnet)
	if err != nil || !ok {
		t.Fatalf("membership = %v, %v", ok, err)
	}
	// Starter sets are per network.
	ok, err = e.IsAuthorizedStarter(addr(1), NetworkCalibration)
	if err != nil || ok {
		t.Fatalf("cross-network membership = %v, %v", ok, err)
	}
}

func TestRemoveStarter(t *testing.T) {
	e, _ := newTestEngine(t)
	seedStarter(t, e, NetworkMainnet, 1)
	seedStarter(t, e, NetworkMainnet, 3)

	if err := e.RemoveStarter(addr(1), NetworkMainnet); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, err := e.IsAuthorizedStarter(addr(1), NetworkMainnet)
	if err != nil || ok {
		t.Fatalf("removed starter still present: %v, %v", ok, err)
	}
	ok, err = e.IsAuthorizedStarter(addr(3), NetworkMainnet)
	if err != nil || !ok {
		t.Fatalf("other starter lost: %v, %v", ok, err)
	}

	// Removing an absent address is a no-op.
	if err := e.RemoveStarter(addr(9), NetworkMainnet); err != nil {
		t.Fatalf("absent remove: %v", err)
	}
}

func TestSeedStartersCoversBothNetworks(t *testing.T) {
	e, _ := newTestEngine(t)
	seedStarter(t, e, NetworkCalibration, 7)

	if err := e.SeedStarters([]common.Address{addr(1), addr(7)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, ntw := range Networks() {
		for _, b := range []byte{1, 7} {
			ok, err := e.IsAuthorizedStarter(addr(b), ntw)
			if err != nil || !ok {
				t.Fatalf("seeded starter %d missing on %s: %v, %v", b, ntw, ok, err)
			}
		}
	}
	starters, err := e.Starters(NetworkCalibration)
	if err != nil || len(starters) != 2 {
		t.Fatalf("seeding must not duplicate existing members: %v, %v", starters, err)
	}
}
