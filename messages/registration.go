package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"

	"fipvote/native/votes"
)

// ReceivedRegistration is a signed request authorizing an Ethereum address to
// vote on behalf of the listed storage providers. The worker address decides
// which network the registration lands on; whether that worker key actually
// controls the miners is confirmed against chain state by the caller.
//
// Message scheme: the voter address followed by miner ids.
//
//	0xabc...def f01234 f05678
type ReceivedRegistration struct {
	Signature     string `json:"signature"`
	WorkerAddress string `json:"worker_address"`
	Message       string `json:"message"`
}

// Registration is the parsed, signer-checked form of a registration request.
type Registration struct {
	Voter    common.Address
	Network  votes.Network
	MinerIDs []uint64
	// Worker is the claimed BLS worker key, canonical string form.
	Worker string
}

// Recover parses the message, derives the network from the worker address,
// and confirms the message was signed by the voter address it names.
func (r ReceivedRegistration) Recover() (Registration, error) {
	ntw, worker, err := r.workerNetwork()
	if err != nil {
		return Registration{}, err
	}

	fields := strings.Fields(r.Message)
	if len(fields) < 2 {
		return Registration{}, fmt.Errorf("%w: %q", ErrInvalidMessageFormat, r.Message)
	}
	if !common.IsHexAddress(fields[0]) {
		return Registration{}, fmt.Errorf("%w: %q", ErrInvalidAddress, fields[0])
	}
	voter := common.HexToAddress(fields[0])

	minerIDs := make([]uint64, 0, len(fields)-1)
	for _, field := range fields[1:] {
		id, err := ParseMinerID(field)
		if err != nil {
			return Registration{}, err
		}
		minerIDs = append(minerIDs, id)
	}

	signer, err := recoverSigner(r.Message, r.Signature)
	if err != nil {
		return Registration{}, err
	}
	if signer != voter {
		return Registration{}, fmt.Errorf("%w: signer %s does not match voter %s",
			ErrInvalidSignature, signer.Hex(), voter.Hex())
	}

	return Registration{Voter: voter, Network: ntw, MinerIDs: minerIDs, Worker: worker}, nil
}

// workerNetwork validates the claimed worker key and maps its class prefix to
// a network: f3 addresses register on mainnet, t3 on calibration.
func (r ReceivedRegistration) workerNetwork() (votes.Network, string, error) {
	raw := strings.TrimSpace(r.WorkerAddress)
	parsed, err := address.NewFromString(raw)
	if err != nil {
		return 0, "", fmt.Errorf("%w: worker %q: %v", ErrInvalidAddress, raw, err)
	}
	if parsed.Protocol() != address.BLS {
		return 0, "", fmt.Errorf("%w: worker %q is not a BLS key", ErrInvalidAddress, raw)
	}
	switch raw[0] {
	case 'f':
		return votes.NetworkMainnet, raw, nil
	case 't':
		return votes.NetworkCalibration, raw, nil
	default:
		return 0, "", fmt.Errorf("%w: worker %q", ErrInvalidAddress, raw)
	}
}

// ParseMinerID accepts either a bare actor id or the f0/t0 rendered form.
func ParseMinerID(s string) (uint64, error) {
	trimmed := s
	if len(trimmed) > 2 && (trimmed[0] == 'f' || trimmed[0] == 't') && trimmed[1] == '0' {
		trimmed = trimmed[2:]
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: miner id %q", ErrInvalidMessageFormat, s)
	}
	return id, nil
}
