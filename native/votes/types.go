package votes

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-state-types/big"
)

// Network identifies the Filecoin network a vote, registration, or starter
// set belongs to. Every keyed entity is partitioned by network; nothing ever
// crosses between the two.
type Network uint8

const (
	NetworkMainnet     Network = 0
	NetworkCalibration Network = 1
)

// Networks lists every supported network, in key-encoding order.
func Networks() []Network {
	return []Network{NetworkMainnet, NetworkCalibration}
}

func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkCalibration:
		return "calibration"
	default:
		return fmt.Sprintf("network(%d)", uint8(n))
	}
}

// AddressPrefix returns the Filecoin address class prefix used when rendering
// miner ids for this network.
func (n Network) AddressPrefix() string {
	if n == NetworkMainnet {
		return "f"
	}
	return "t"
}

// ParseNetwork maps the query-parameter form ("mainnet"/"calibration") to a
// Network.
func ParseNetwork(s string) (Network, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "mainnet":
		return NetworkMainnet, nil
	case "calibration":
		return NetworkCalibration, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidNetwork, s)
	}
}

// VoteChoice enumerates the supported ballot selections. The byte codes are
// part of the persisted vote layout and must not be renumbered.
type VoteChoice uint8

const (
	VoteYay     VoteChoice = 0
	VoteNay     VoteChoice = 1
	VoteAbstain VoteChoice = 2
)

// Choices lists every valid ballot selection, in byte-code order.
func Choices() []VoteChoice {
	return []VoteChoice{VoteYay, VoteNay, VoteAbstain}
}

// Valid reports whether the choice is one of the three persisted codes.
func (c VoteChoice) Valid() bool {
	return c <= VoteAbstain
}

func (c VoteChoice) String() string {
	switch c {
	case VoteYay:
		return "yay"
	case VoteNay:
		return "nay"
	case VoteAbstain:
		return "abstain"
	default:
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
}

// Vote is a single ballot. Two votes are duplicates when they share a voter
// and a FIP number, regardless of choice; the ledger rejects the second.
type Vote struct {
	Choice VoteChoice     `json:"choice"`
	Voter  common.Address `json:"voter"`
	FIP    uint32         `json:"fip"`
}

// voteWireSize is the persisted layout: choice(1) || voter(20) || fip(4 BE).
const voteWireSize = 1 + common.AddressLength + 4

// Encode serialises the vote into its fixed 25-byte layout.
func (v Vote) Encode() []byte {
	buf := make([]byte, voteWireSize)
	buf[0] = byte(v.Choice)
	copy(buf[1:21], v.Voter.Bytes())
	binary.BigEndian.PutUint32(buf[21:25], v.FIP)
	return buf
}

// DecodeVote parses a single 25-byte vote record.
func DecodeVote(b []byte) (Vote, error) {
	if len(b) != voteWireSize {
		return Vote{}, &DecodeError{Entity: "vote", Len: len(b)}
	}
	choice := VoteChoice(b[0])
	if !choice.Valid() {
		return Vote{}, &DecodeError{Entity: "vote choice", Len: len(b)}
	}
	return Vote{
		Choice: choice,
		Voter:  common.BytesToAddress(b[1:21]),
		FIP:    binary.BigEndian.Uint32(b[21:25]),
	}, nil
}

func (v Vote) String() string {
	return fmt.Sprintf("%s voted %s on FIP-%d", v.Voter.Hex(), v.Choice, v.FIP)
}

// Status is the lifecycle phase of a proposal as observed at a point in time.
type Status uint8

const (
	StatusDoesNotExist Status = iota
	StatusInProgress
	StatusConcluded
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusConcluded:
		return "concluded"
	default:
		return "does_not_exist"
	}
}

// VoteStatus carries the phase plus, for in-progress proposals, the seconds
// remaining until the voting window closes.
type VoteStatus struct {
	Status           Status `json:"status"`
	SecondsRemaining uint64 `json:"seconds_remaining,omitempty"`
}

// Tally aggregates a proposal's ballots: raw counts from the vote list and
// the storage power totals persisted at cast time. Power is never recomputed
// from chain state when tallying.
type Tally struct {
	YayCount     uint64  `json:"yay_count"`
	NayCount     uint64  `json:"nay_count"`
	AbstainCount uint64  `json:"abstain_count"`
	YayPower     big.Int `json:"yay_power"`
	NayPower     big.Int `json:"nay_power"`
	AbstainPower big.Int `json:"abstain_power"`
}

// Registration is a voter's authorization record: the delegate miner ids an
// Ethereum address may vote on behalf of, on one network.
type Registration struct {
	Voter    common.Address `json:"voter"`
	Network  Network        `json:"network"`
	MinerIDs []uint64       `json:"miner_ids"`
}
