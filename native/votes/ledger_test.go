package votes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/filecoin-project/go-state-types/big"
)

const week = uint64(60 * 60 * 24 * 7)

func seedStarter(t *testing.T, e *Engine, ntw Network, starter byte) {
	t.Helper()
	if err := e.RegisterStarter(addr(starter), ntw); err != nil {
		t.Fatalf("register starter: %v", err)
	}
}

func registerVoter(t *testing.T, e *Engine, ntw Network, voter byte, miners ...uint64) {
	t.Helper()
	err := e.Register(Registration{Voter: addr(voter), Network: ntw, MinerIDs: miners})
	if err != nil {
		t.Fatalf("register voter: %v", err)
	}
}

func TestStartVoteRequiresAuthorizedStarter(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.StartVote(7, addr(1), NetworkMainnet)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("got %v, want ErrNotAuthorized", err)
	}

	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(7, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Authorization is per network.
	err = e.StartVote(7, addr(1), NetworkCalibration)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("got %v, want ErrNotAuthorized on the other network", err)
	}
}

func TestStartVoteNeverRestarts(t *testing.T) {
	e, _ := newTestEngine(t)
	advance := fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	seedStarter(t, e, NetworkMainnet, 2)

	if err := e.StartVote(7, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.StartVote(7, addr(2), NetworkMainnet); !errors.Is(err, ErrVoteAlreadyExists) {
		t.Fatalf("got %v, want ErrVoteAlreadyExists", err)
	}

	// Conclusion does not reopen the slot.
	advance(time.Duration(week+1) * time.Second)
	if err := e.SweepExpired(NetworkMainnet, week); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := e.StartVote(7, addr(1), NetworkMainnet); !errors.Is(err, ErrVoteAlreadyExists) {
		t.Fatalf("got %v, want ErrVoteAlreadyExists after conclusion", err)
	}
}

func TestVoteStatusLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	advance := fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkCalibration, 1)

	status, err := e.VoteStatus(42, week, NetworkCalibration)
	if err != nil || status.Status != StatusDoesNotExist {
		t.Fatalf("before start: %+v, %v", status, err)
	}

	if err := e.StartVote(42, addr(1), NetworkCalibration); err != nil {
		t.Fatalf("start: %v", err)
	}
	status, err = e.VoteStatus(42, week, NetworkCalibration)
	if err != nil || status.Status != StatusInProgress || status.SecondsRemaining != week {
		t.Fatalf("just started: %+v, %v", status, err)
	}

	advance(time.Duration(week/2) * time.Second)
	status, err = e.VoteStatus(42, week, NetworkCalibration)
	if err != nil || status.Status != StatusInProgress || status.SecondsRemaining != week-week/2 {
		t.Fatalf("halfway: %+v, %v", status, err)
	}

	advance(time.Duration(week) * time.Second)
	status, err = e.VoteStatus(42, week, NetworkCalibration)
	if err != nil || status.Status != StatusConcluded {
		t.Fatalf("after window: %+v, %v", status, err)
	}

	// Concluded is terminal.
	status, err = e.VoteStatus(42, week, NetworkCalibration)
	if err != nil || status.Status != StatusConcluded {
		t.Fatalf("still concluded: %+v, %v", status, err)
	}
}

func TestSweepMovesExpiredExactlyOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	advance := fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)

	for _, fip := range []uint32{5, 6} {
		if err := e.StartVote(fip, addr(1), NetworkMainnet); err != nil {
			t.Fatalf("start %d: %v", fip, err)
		}
	}
	advance(time.Hour)
	if err := e.StartVote(7, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start 7: %v", err)
	}

	// Expire the first two but not the third.
	advance(time.Duration(week)*time.Second - 30*time.Minute)
	if err := e.SweepExpired(NetworkMainnet, week); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	active, err := e.ListActive(NetworkMainnet)
	if err != nil || len(active) != 1 || active[0] != 7 {
		t.Fatalf("active = %v, %v", active, err)
	}
	concluded, err := e.ListConcluded(NetworkMainnet)
	if err != nil || len(concluded) != 2 || concluded[0] != 5 || concluded[1] != 6 {
		t.Fatalf("concluded = %v, %v", concluded, err)
	}

	// Re-sweeping is a no-op; no FIP appears twice.
	if err := e.SweepExpired(NetworkMainnet, week); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	concluded, err = e.ListConcluded(NetworkMainnet)
	if err != nil || len(concluded) != 2 {
		t.Fatalf("concluded after resweep = %v, %v", concluded, err)
	}
}

func TestCastVoteAdmission(t *testing.T) {
	e, oracle := newTestEngine(t)
	fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 3000
	oracle.power[200] = 2000
	registerVoter(t, e, NetworkMainnet, 9, 100, 200)

	ballot := Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}
	if err := e.CastVote(context.Background(), 42, ballot, week); err != nil {
		t.Fatalf("cast: %v", err)
	}

	tally, err := e.VoteResults(42, NetworkMainnet)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if tally.YayCount != 1 || tally.NayCount != 0 || tally.AbstainCount != 0 {
		t.Fatalf("counts = %+v", tally)
	}
	if !tally.YayPower.Equals(big.NewInt(5000)) {
		t.Fatalf("yay power = %s, want 5000", tally.YayPower)
	}
	if !tally.NayPower.Equals(big.Zero()) || !tally.AbstainPower.Equals(big.Zero()) {
		t.Fatalf("untouched totals should be zero: %+v", tally)
	}

	list, err := e.Votes(42, NetworkMainnet)
	if err != nil || len(list) != 1 || list[0] != ballot {
		t.Fatalf("votes = %v, %v", list, err)
	}
}

func TestCastVoteRejectsDuplicateVoter(t *testing.T) {
	e, oracle := newTestEngine(t)
	fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 10
	registerVoter(t, e, NetworkMainnet, 9, 100)

	if err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week); err != nil {
		t.Fatalf("first cast: %v", err)
	}
	// A second ballot is a duplicate even with a different choice.
	err := e.CastVote(context.Background(), 42, Vote{Choice: VoteNay, Voter: addr(9), FIP: 42}, week)
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("got %v, want ErrDuplicateVote", err)
	}
	tally, err := e.VoteResults(42, NetworkMainnet)
	if err != nil || tally.YayCount != 1 || !tally.NayPower.Equals(big.Zero()) {
		t.Fatalf("rejected ballot must not change totals: %+v, %v", tally, err)
	}
}

func TestCastVoteRejectsUnregisteredAndInactive(t *testing.T) {
	e, oracle := newTestEngine(t)
	fixClock(e, time.Unix(1700000000, 0))

	err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week)
	if !errors.Is(err, ErrVoterNotRegistered) {
		t.Fatalf("got %v, want ErrVoterNotRegistered", err)
	}

	oracle.power[100] = 10
	registerVoter(t, e, NetworkMainnet, 9, 100)
	err = e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week)
	if !errors.Is(err, ErrVoteNotActive) {
		t.Fatalf("got %v, want ErrVoteNotActive", err)
	}
}

func TestCastVoteRejectsConcludedVote(t *testing.T) {
	e, oracle := newTestEngine(t)
	advance := fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 10
	registerVoter(t, e, NetworkMainnet, 9, 100)

	advance(time.Duration(week+1) * time.Second)
	err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week)
	if !errors.Is(err, ErrVoteNotActive) {
		t.Fatalf("got %v, want ErrVoteNotActive after expiry", err)
	}
}

func TestCastVoteRejectsEmptyDelegateSet(t *testing.T) {
	e, _ := newTestEngine(t)
	fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	registerVoter(t, e, NetworkMainnet, 9)

	err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week)
	if !errors.Is(err, ErrNoDelegates) {
		t.Fatalf("got %v, want ErrNoDelegates", err)
	}
}

func TestCastVoteOracleFailureLeavesNoPartialTotals(t *testing.T) {
	e, oracle := newTestEngine(t)
	fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 3000
	oracle.power[200] = 2000
	oracle.failOn = 200
	registerVoter(t, e, NetworkMainnet, 9, 100, 200)

	err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week)
	if err == nil {
		t.Fatal("cast should fail when the oracle fails mid-fetch")
	}
	tally, tErr := e.VoteResults(42, NetworkMainnet)
	if tErr != nil || !tally.YayPower.Equals(big.Zero()) || tally.YayCount != 0 {
		t.Fatalf("failed cast must leave no trace: %+v, %v", tally, tErr)
	}

	// The same voter may retry once the oracle recovers.
	oracle.failOn = 0
	if err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week); err != nil {
		t.Fatalf("retry: %v", err)
	}
	tally, tErr = e.VoteResults(42, NetworkMainnet)
	if tErr != nil || !tally.YayPower.Equals(big.NewInt(5000)) {
		t.Fatalf("retry tally: %+v, %v", tally, tErr)
	}
}

func TestCastVoteRejectsConclusionDuringPowerFetch(t *testing.T) {
	e, oracle := newTestEngine(t)
	advance := fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 5000
	registerVoter(t, e, NetworkMainnet, 9, 100)

	// The voting window elapses and a sweep concludes the FIP while the
	// ballot's power is being fetched.
	oracle.onFetch = func() {
		advance(time.Duration(week+1) * time.Second)
		if err := e.SweepExpired(NetworkMainnet, week); err != nil {
			t.Errorf("sweep during fetch: %v", err)
		}
	}

	err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week)
	if !errors.Is(err, ErrVoteNotActive) {
		t.Fatalf("got %v, want ErrVoteNotActive", err)
	}

	concluded, err := e.ListConcluded(NetworkMainnet)
	if err != nil || len(concluded) != 1 || concluded[0] != 42 {
		t.Fatalf("concluded = %v, %v", concluded, err)
	}
	list, err := e.Votes(42, NetworkMainnet)
	if err != nil || len(list) != 0 {
		t.Fatalf("a ballot landed on a concluded vote: %v, %v", list, err)
	}
	tally, err := e.VoteResults(42, NetworkMainnet)
	if err != nil || tally.YayCount != 0 || !tally.YayPower.Equals(big.Zero()) {
		t.Fatalf("totals bumped after conclusion: %+v, %v", tally, err)
	}
}

func TestVoteStatusClockCrossesWindowBoundary(t *testing.T) {
	e, _ := newTestEngine(t)
	base := time.Unix(1700000000, 0)
	fixClock(e, base)
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The sweep's clock reading falls just inside the window, the status
	// computation's just outside it.
	calls := 0
	e.SetNowFunc(func() time.Time {
		calls++
		if calls == 1 {
			return base.Add(time.Duration(week-1) * time.Second)
		}
		return base.Add(time.Duration(week+10) * time.Second)
	})

	status, err := e.VoteStatus(42, week, NetworkMainnet)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusConcluded || status.SecondsRemaining != 0 {
		t.Fatalf("got %+v, want concluded with no time remaining", status)
	}
}

func TestNetworksAreIsolated(t *testing.T) {
	e, oracle := newTestEngine(t)
	fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 10
	registerVoter(t, e, NetworkMainnet, 9, 100)
	if err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(9), FIP: 42}, week); err != nil {
		t.Fatalf("cast: %v", err)
	}

	status, err := e.VoteStatus(42, week, NetworkCalibration)
	if err != nil || status.Status != StatusDoesNotExist {
		t.Fatalf("calibration sees mainnet vote: %+v, %v", status, err)
	}
	tally, err := e.VoteResults(42, NetworkCalibration)
	if err != nil || tally.YayCount != 0 || !tally.YayPower.Equals(big.Zero()) {
		t.Fatalf("calibration tally = %+v, %v", tally, err)
	}
	active, err := e.ListActive(NetworkCalibration)
	if err != nil || len(active) != 0 {
		t.Fatalf("calibration active = %v, %v", active, err)
	}
}

func TestVoteResultsAfterConclusion(t *testing.T) {
	e, oracle := newTestEngine(t)
	advance := fixClock(e, time.Unix(1700000000, 0))
	seedStarter(t, e, NetworkMainnet, 1)
	if err := e.StartVote(42, addr(1), NetworkMainnet); err != nil {
		t.Fatalf("start: %v", err)
	}
	oracle.power[100] = 7
	oracle.power[200] = 11
	registerVoter(t, e, NetworkMainnet, 8, 100)
	registerVoter(t, e, NetworkMainnet, 9, 200)

	if err := e.CastVote(context.Background(), 42, Vote{Choice: VoteYay, Voter: addr(8), FIP: 42}, week); err != nil {
		t.Fatalf("cast yay: %v", err)
	}
	if err := e.CastVote(context.Background(), 42, Vote{Choice: VoteNay, Voter: addr(9), FIP: 42}, week); err != nil {
		t.Fatalf("cast nay: %v", err)
	}

	advance(time.Duration(week+1) * time.Second)
	if err := e.SweepExpired(NetworkMainnet, week); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	tally, err := e.VoteResults(42, NetworkMainnet)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if tally.YayCount != 1 || tally.NayCount != 1 {
		t.Fatalf("counts = %+v", tally)
	}
	if !tally.YayPower.Equals(big.NewInt(7)) || !tally.NayPower.Equals(big.NewInt(11)) {
		t.Fatalf("powers = %+v", tally)
	}
}
