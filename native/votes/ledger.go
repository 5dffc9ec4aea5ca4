package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-state-types/big"

	"fipvote/storage"
)

// StartVote opens the voting window for a FIP. The starter must already be in
// the network's starter set and the FIP must not have been started before on
// that network. The start timestamp is immutable once written.
func (e *Engine) StartVote(fip uint32, starter common.Address, ntw Network) error {
	authorized, err := e.IsAuthorizedStarter(starter, ntw)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, starter.Hex())
	}

	// Lock order is admin before ledger, everywhere.
	unlockAdmin := e.lock(adminLockKey(ntw))
	defer unlockAdmin()
	unlock := e.lock(ledgerLockKey(ntw, fip))
	defer unlock()

	exists, err := e.db.Has(startTimeKey(fip, ntw))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: FIP-%d on %s", ErrVoteAlreadyExists, fip, ntw)
	}
	if err := e.db.Put(startTimeKey(fip, ntw), encodeTimestamp(uint64(e.now().Unix()))); err != nil {
		return err
	}

	active, err := e.readFIPSet(activeKey(ntw))
	if err != nil {
		return err
	}
	return e.db.Put(activeKey(ntw), encodeFIPSet(append(active, fip)))
}

// VoteExists reports whether a start timestamp has ever been recorded for the
// FIP on the network, regardless of whether voting has since concluded.
func (e *Engine) VoteExists(ntw Network, fip uint32) (bool, error) {
	return e.db.Has(startTimeKey(fip, ntw))
}

// ListActive returns the in-progress FIPs for the network. It is a pure read:
// callers that need expired entries retired first must run SweepExpired.
func (e *Engine) ListActive(ntw Network) ([]uint32, error) {
	return e.readFIPSet(activeKey(ntw))
}

// ListConcluded returns the concluded FIPs for the network.
func (e *Engine) ListConcluded(ntw Network) ([]uint32, error) {
	return e.readFIPSet(concludedKey(ntw))
}

// SweepExpired retires every active FIP whose voting window has elapsed,
// moving it from the active index to the concluded index. Each FIP makes that
// transition exactly once; the underlying ledger record is never deleted.
func (e *Engine) SweepExpired(ntw Network, voteLength uint64) error {
	unlock := e.lock(adminLockKey(ntw))
	defer unlock()

	active, err := e.readFIPSet(activeKey(ntw))
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	now := uint64(e.now().Unix())
	remaining := active[:0]
	var expired []uint32
	for _, fip := range active {
		start, err := e.startTime(fip, ntw)
		if err != nil {
			return err
		}
		if now >= start && now-start >= voteLength {
			expired = append(expired, fip)
			continue
		}
		remaining = append(remaining, fip)
	}
	if len(expired) == 0 {
		return nil
	}

	// Hold every expiring FIP's ledger lock across the index move, so an
	// in-flight admission on that FIP either commits before the FIP
	// concludes or observes the concluded state when it re-checks.
	for _, fip := range expired {
		unlockLedger := e.lock(ledgerLockKey(ntw, fip))
		defer unlockLedger()
	}

	concluded, err := e.readFIPSet(concludedKey(ntw))
	if err != nil {
		return err
	}
	// Concluded is written first: if the active-side write fails the FIP
	// stays active, and the next sweep repeats both writes idempotently.
	if err := e.db.Put(concludedKey(ntw), encodeFIPSet(append(concluded, expired...))); err != nil {
		return err
	}
	if err := e.db.Put(activeKey(ntw), encodeFIPSet(remaining)); err != nil {
		return err
	}
	e.metrics.SweptConcluded(ntw.String(), len(expired))
	return nil
}

// VoteStatus reports the lifecycle phase of a FIP under the supplied voting
// window. Expired actives are swept first; a window that elapses between the
// sweep and the final clock reading still reports concluded, with the index
// entry retired by the next sweep.
func (e *Engine) VoteStatus(fip uint32, voteLength uint64, ntw Network) (VoteStatus, error) {
	exists, err := e.VoteExists(ntw, fip)
	if err != nil {
		return VoteStatus{}, err
	}
	if !exists {
		return VoteStatus{Status: StatusDoesNotExist}, nil
	}
	if err := e.SweepExpired(ntw, voteLength); err != nil {
		return VoteStatus{}, err
	}
	active, err := e.isActive(ntw, fip)
	if err != nil {
		return VoteStatus{}, err
	}
	if !active {
		return VoteStatus{Status: StatusConcluded}, nil
	}
	start, err := e.startTime(fip, ntw)
	if err != nil {
		return VoteStatus{}, err
	}
	remaining := voteLength
	if now := uint64(e.now().Unix()); now > start {
		elapsed := now - start
		// The clock may cross the window boundary between the sweep's
		// reading and this one; report concluded rather than letting
		// the subtraction wrap. The next sweep retires the index entry.
		if elapsed >= voteLength {
			return VoteStatus{Status: StatusConcluded}, nil
		}
		remaining = voteLength - elapsed
	}
	return VoteStatus{Status: StatusInProgress, SecondsRemaining: remaining}, nil
}

// CastVote admits a ballot. The voter's network comes from the reverse
// registration lookup; the FIP must be active; the voter must hold at least
// one delegate and must not have voted on this FIP before. Power for every
// delegate is fetched from the oracle up front, so a mid-loop oracle failure
// leaves no partially applied totals. Active membership and the duplicate
// check are verified again under the ledger lock, which a concluding sweep
// also holds, so a ballot can never land on a FIP after it concludes.
func (e *Engine) CastVote(ctx context.Context, fip uint32, v Vote, voteLength uint64) error {
	ntw, err := e.NetworkOf(v.Voter)
	if err != nil {
		e.metrics.BallotRejected("unknown", "not_registered")
		return err
	}
	if err := e.SweepExpired(ntw, voteLength); err != nil {
		return err
	}
	// Cheap rejections before any oracle work. Both checks are repeated
	// under the lock before anything is written.
	active, err := e.isActive(ntw, fip)
	if err != nil {
		return err
	}
	if !active {
		e.metrics.BallotRejected(ntw.String(), "not_active")
		return fmt.Errorf("%w: FIP-%d on %s", ErrVoteNotActive, fip, ntw)
	}

	delegates, err := e.Delegates(v.Voter, ntw)
	if err != nil {
		return err
	}
	if len(delegates) == 0 {
		e.metrics.BallotRejected(ntw.String(), "no_delegates")
		return fmt.Errorf("%w: %s", ErrNoDelegates, v.Voter.Hex())
	}
	if dup, err := e.hasVoted(fip, ntw, v.Voter); err != nil {
		return err
	} else if dup {
		e.metrics.BallotRejected(ntw.String(), "duplicate")
		return fmt.Errorf("%w: %s on FIP-%d", ErrDuplicateVote, v.Voter.Hex(), fip)
	}

	// Snapshot the full weight before taking the lock: oracle round trips
	// must not serialise the ledger, and a failure here leaves no trace.
	weight := big.Zero()
	for _, minerID := range delegates {
		power, err := e.oracle.MinerRawPower(ctx, minerID, ntw)
		if err != nil {
			e.metrics.BallotRejected(ntw.String(), "oracle")
			return fmt.Errorf("votes: fetching power for miner %d: %w", minerID, err)
		}
		weight = big.Add(weight, power)
	}

	unlock := e.lock(ledgerLockKey(ntw, fip))
	defer unlock()

	// The FIP may have concluded while the oracle was queried.
	active, err = e.isActive(ntw, fip)
	if err != nil {
		return err
	}
	if !active {
		e.metrics.BallotRejected(ntw.String(), "not_active")
		return fmt.Errorf("%w: FIP-%d on %s", ErrVoteNotActive, fip, ntw)
	}

	list, err := e.votes(fip, ntw)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.Voter == v.Voter {
			e.metrics.BallotRejected(ntw.String(), "duplicate")
			return fmt.Errorf("%w: %s on FIP-%d", ErrDuplicateVote, v.Voter.Hex(), fip)
		}
	}

	totalKey := powerTotalKey(fip, v.Choice, ntw)
	total, err := e.readPower(totalKey)
	if err != nil {
		return err
	}
	if err := e.db.Put(totalKey, encodePower(big.Add(total, weight))); err != nil {
		return err
	}
	if err := e.db.Put(votesKey(fip, ntw), encodeVoteList(append(list, v))); err != nil {
		return err
	}
	e.metrics.BallotAdmitted(ntw.String(), v.Choice.String())
	return nil
}

// VoteResults tallies a FIP: ballot counts from the vote list, power totals
// from the persisted per-choice records. Valid at any point after the vote
// has been started.
func (e *Engine) VoteResults(fip uint32, ntw Network) (Tally, error) {
	list, err := e.votes(fip, ntw)
	if err != nil {
		return Tally{}, err
	}
	tally := Tally{}
	for _, v := range list {
		switch v.Choice {
		case VoteYay:
			tally.YayCount++
		case VoteNay:
			tally.NayCount++
		case VoteAbstain:
			tally.AbstainCount++
		}
	}
	if tally.YayPower, err = e.readPower(powerTotalKey(fip, VoteYay, ntw)); err != nil {
		return Tally{}, err
	}
	if tally.NayPower, err = e.readPower(powerTotalKey(fip, VoteNay, ntw)); err != nil {
		return Tally{}, err
	}
	if tally.AbstainPower, err = e.readPower(powerTotalKey(fip, VoteAbstain, ntw)); err != nil {
		return Tally{}, err
	}
	return tally, nil
}

// Votes returns the ballots cast on a FIP, in cast order.
func (e *Engine) Votes(fip uint32, ntw Network) ([]Vote, error) {
	return e.votes(fip, ntw)
}

func (e *Engine) votes(fip uint32, ntw Network) ([]Vote, error) {
	raw, err := e.db.Get(votesKey(fip, ntw))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeVoteList(raw)
}

func (e *Engine) hasVoted(fip uint32, ntw Network, voter common.Address) (bool, error) {
	list, err := e.votes(fip, ntw)
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing.Voter == voter {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) startTime(fip uint32, ntw Network) (uint64, error) {
	raw, err := e.db.Get(startTimeKey(fip, ntw))
	if err != nil {
		return 0, err
	}
	return decodeTimestamp(raw)
}

func (e *Engine) isActive(ntw Network, fip uint32) (bool, error) {
	active, err := e.readFIPSet(activeKey(ntw))
	if err != nil {
		return false, err
	}
	for _, candidate := range active {
		if candidate == fip {
			return true, nil
		}
	}
	return false, nil
}

// readFIPSet treats a missing index as an empty set; absence is not failure
// for index reads.
func (e *Engine) readFIPSet(key []byte) ([]uint32, error) {
	raw, err := e.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeFIPSet(raw)
}

func (e *Engine) readPower(key []byte) (big.Int, error) {
	raw, err := e.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.Zero(), nil
	}
	if err != nil {
		return big.Int{}, err
	}
	return decodePower(raw), nil
}
