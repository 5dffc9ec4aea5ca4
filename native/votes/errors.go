package votes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized rejects a vote start from an address outside the
	// network's starter set.
	ErrNotAuthorized = errors.New("votes: address not authorized to start votes")
	// ErrVoteAlreadyExists rejects starting a vote for a FIP that already
	// has a start timestamp on the network.
	ErrVoteAlreadyExists = errors.New("votes: vote already exists")
	// ErrVoteNotActive rejects a ballot for a FIP that is not currently
	// accepting votes. Never-started and concluded proposals are not
	// distinguished here.
	ErrVoteNotActive = errors.New("votes: vote not active")
	// ErrDuplicateVote rejects a second ballot from the same voter on the
	// same FIP, regardless of choice.
	ErrDuplicateVote = errors.New("votes: duplicate ballot")
	// ErrVoterNotRegistered means the address has no network association.
	ErrVoterNotRegistered = errors.New("votes: voter not registered for any network")
	// ErrNoDelegates means the voter is registered but controls no miners.
	ErrNoDelegates = errors.New("votes: voter has no registered delegates")
	// ErrInvalidNetwork rejects an unrecognised network name.
	ErrInvalidNetwork = errors.New("votes: invalid network")
)

// DecodeError reports a stored record whose byte layout is malformed. It is
// fatal for that record only, never for the process.
type DecodeError struct {
	Entity string
	Len    int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("votes: malformed %s record (%d bytes)", e.Entity, e.Len)
}
