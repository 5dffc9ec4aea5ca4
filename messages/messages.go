// Package messages parses the signed free-text payloads the voting API
// accepts and recovers their Ethereum signer. Signatures are EIP-191
// personal-sign over the raw message text, the scheme wallet tooling
// produces by default.
package messages

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignature     = errors.New("messages: invalid signature")
	ErrInvalidMessageFormat = errors.New("messages: invalid message format")
	ErrInvalidVoteOption    = errors.New("messages: invalid vote option")
	ErrInvalidAddress       = errors.New("messages: invalid address")
)

// recoverSigner returns the address that personal-signed the message. Wallet
// signatures carry V as 27/28; go-ethereum expects 0/1.
func recoverSigner(message, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(sigHex), "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}
	if sig[ethcrypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[ethcrypto.RecoveryIDOffset] -= 27
	}
	digest := accounts.TextHash([]byte(message))
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
