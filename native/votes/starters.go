package votes

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"fipvote/storage"
)

// RegisterStarter adds an address to the network's vote-starter set. The set
// is sorted and deduplicated on every write, so registering an existing
// starter is a harmless rewrite. Whether the caller was entitled to grow the
// set is checked one layer up, against the existing membership.
func (e *Engine) RegisterStarter(addr common.Address, ntw Network) error {
	unlock := e.lock(adminLockKey(ntw))
	defer unlock()

	starters, err := e.readStarters(ntw)
	if err != nil {
		return err
	}
	return e.db.Put(startersKey(ntw), encodeAddressSet(append(starters, addr)))
}

// RemoveStarter drops an address from the starter set; removing an absent
// address is a no-op.
func (e *Engine) RemoveStarter(addr common.Address, ntw Network) error {
	unlock := e.lock(adminLockKey(ntw))
	defer unlock()

	starters, err := e.readStarters(ntw)
	if err != nil {
		return err
	}
	kept := starters[:0]
	for _, existing := range starters {
		if existing != addr {
			kept = append(kept, existing)
		}
	}
	return e.db.Put(startersKey(ntw), encodeAddressSet(kept))
}

// IsAuthorizedStarter reports starter-set membership.
func (e *Engine) IsAuthorizedStarter(addr common.Address, ntw Network) (bool, error) {
	starters, err := e.readStarters(ntw)
	if err != nil {
		return false, err
	}
	for _, existing := range starters {
		if existing == addr {
			return true, nil
		}
	}
	return false, nil
}

// Starters returns the network's vote-starter set in its stored order.
func (e *Engine) Starters(ntw Network) ([]common.Address, error) {
	return e.readStarters(ntw)
}

// SeedStarters merges the bootstrap allow-list into every network's starter
// set. Called once at process start; addresses already present are kept.
func (e *Engine) SeedStarters(bootstrap []common.Address) error {
	for _, ntw := range Networks() {
		unlock := e.lock(adminLockKey(ntw))
		starters, err := e.readStarters(ntw)
		if err != nil {
			unlock()
			return err
		}
		err = e.db.Put(startersKey(ntw), encodeAddressSet(append(starters, bootstrap...)))
		unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) readStarters(ntw Network) ([]common.Address, error) {
	raw, err := e.db.Get(startersKey(ntw))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeAddressSet(raw)
}
