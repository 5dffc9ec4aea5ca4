package messages

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// StarterAuthorization is a signed request to admit a new vote starter. The
// message body is the hex address being authorized; whether the signer may
// grant that is decided against the existing starter set by the caller.
type StarterAuthorization struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// Auth returns (signer, address to authorize).
func (a StarterAuthorization) Auth() (common.Address, common.Address, error) {
	candidate := strings.TrimSpace(a.Message)
	if !common.IsHexAddress(candidate) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, candidate)
	}
	signer, err := recoverSigner(a.Message, a.Signature)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return signer, common.HexToAddress(candidate), nil
}
