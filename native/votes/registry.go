package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-state-types/big"

	"fipvote/storage"
)

// Register records the delegate miner ids an address may vote on behalf of.
// Re-registering overwrites the previous set. The reverse address->network
// association is last-writer-wins: registering the same address under the
// other network silently discards the old association, so a voter who wants
// a clean switch should unregister first.
func (e *Engine) Register(reg Registration) error {
	unlock := e.lock(registrationLockKey(reg.Network, reg.Voter))
	defer unlock()

	if err := e.db.Put(registrationKey(reg.Network, reg.Voter), encodeMinerIDs(reg.MinerIDs)); err != nil {
		return err
	}
	return e.db.Put(networkLookupKey(reg.Voter), []byte{byte(reg.Network)})
}

// Unregister removes the forward registration and the reverse lookup. Both
// deletes are unconditional; unregistering an unknown voter is a no-op.
func (e *Engine) Unregister(addr common.Address, ntw Network) error {
	unlock := e.lock(registrationLockKey(ntw, addr))
	defer unlock()

	if err := e.db.Delete(registrationKey(ntw, addr)); err != nil {
		return err
	}
	return e.db.Delete(networkLookupKey(addr))
}

// IsRegistered reports whether the address holds a non-empty delegate set on
// the network.
func (e *Engine) IsRegistered(addr common.Address, ntw Network) (bool, error) {
	ids, err := e.Delegates(addr, ntw)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// Delegates returns the miner ids registered for the address on the network.
// A missing registration reads as an empty set.
func (e *Engine) Delegates(addr common.Address, ntw Network) ([]uint64, error) {
	raw, err := e.db.Get(registrationKey(ntw, addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeMinerIDs(raw)
}

// NetworkOf resolves the network an address last registered under.
func (e *Engine) NetworkOf(addr common.Address) (Network, error) {
	raw, err := e.db.Get(networkLookupKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrVoterNotRegistered, addr.Hex())
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 1 || raw[0] > byte(NetworkCalibration) {
		return 0, &DecodeError{Entity: "network lookup", Len: len(raw)}
	}
	return Network(raw[0]), nil
}

// VotingPower sums the oracle's current raw byte power over the voter's
// delegates. The answer reflects chain state at call time and is not
// persisted anywhere.
func (e *Engine) VotingPower(ctx context.Context, addr common.Address, ntw Network) (big.Int, error) {
	delegates, err := e.Delegates(addr, ntw)
	if err != nil {
		return big.Int{}, err
	}
	power := big.Zero()
	for _, minerID := range delegates {
		p, err := e.oracle.MinerRawPower(ctx, minerID, ntw)
		if err != nil {
			return big.Int{}, fmt.Errorf("votes: fetching power for miner %d: %w", minerID, err)
		}
		power = big.Add(power, p)
	}
	return power, nil
}
