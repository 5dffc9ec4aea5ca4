package messages

import (
	"github.com/ethereum/go-ethereum/common"
)

// VoteStart is a signed request to open the voting window for a FIP.
//
// Message scheme:
//
//	FIP-123
type VoteStart struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// Auth recovers the starter address and the FIP number.
func (v VoteStart) Auth() (common.Address, uint32, error) {
	fip, err := parseFIP(v.Message)
	if err != nil {
		return common.Address{}, 0, err
	}
	starter, err := recoverSigner(v.Message, v.Signature)
	if err != nil {
		return common.Address{}, 0, err
	}
	return starter, fip, nil
}
