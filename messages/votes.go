package messages

import (
	"fmt"
	"strconv"
	"strings"

	"fipvote/native/votes"
)

// ReceivedVote is a signed ballot as it arrives on the wire.
//
// Message scheme:
//
//	YAY: FIP-123
type ReceivedVote struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// Vote recovers the signer and parses the ballot out of the message text.
func (r ReceivedVote) Vote() (votes.Vote, error) {
	choice, fip, err := r.details()
	if err != nil {
		return votes.Vote{}, err
	}
	voter, err := recoverSigner(r.Message, r.Signature)
	if err != nil {
		return votes.Vote{}, err
	}
	return votes.Vote{Choice: choice, Voter: voter, FIP: fip}, nil
}

func (r ReceivedVote) details() (votes.VoteChoice, uint32, error) {
	fields := strings.Fields(r.Message)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMessageFormat, r.Message)
	}

	var choice votes.VoteChoice
	switch fields[0] {
	case "YAY:":
		choice = votes.VoteYay
	case "NAY:":
		choice = votes.VoteNay
	case "ABSTAIN:":
		choice = votes.VoteAbstain
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidVoteOption, fields[0])
	}

	fip, err := parseFIP(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return choice, fip, nil
}

func parseFIP(s string) (uint32, error) {
	numStr, ok := strings.CutPrefix(s, "FIP-")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMessageFormat, s)
	}
	num, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMessageFormat, s)
	}
	return uint32(num), nil
}
