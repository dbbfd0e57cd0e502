// Package eth wraps the go-ethereum primitives used for wallet signature
// verification. Verification is pure and fails closed: anything that is not a
// canonical, well-formed signature recovering to the expected address is a
// plain false, never a panic.
package eth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the expected byte length of a wallet signature (r || s || v).
const SignatureLength = 65

// ValidAddress reports whether s is a well-formed hex Ethereum address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress returns the checksummed form of a hex address.
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// DecodeSignature decodes a 0x-prefixed hex signature string.
func DecodeSignature(s string) ([]byte, error) {
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	return sig, nil
}

// TextHash returns the EIP-191 personal-message hash of msg, the digest
// wallets actually sign for personal_sign requests.
func TextHash(msg []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}

// RecoverAddress recovers the signing address of an EIP-191 personal-sign
// signature over msg. Non-canonical (high-S) signatures are rejected so that
// a malleated copy of a valid signature never verifies.
func RecoverAddress(msg, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	// Wallets emit v as 27/28; crypto.SigToPub wants the raw recovery id.
	recovered := make([]byte, SignatureLength)
	copy(recovered, sig)
	if recovered[64] >= 27 {
		recovered[64] -= 27
	}
	if recovered[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}

	r := new(big.Int).SetBytes(recovered[:32])
	s := new(big.Int).SetBytes(recovered[32:64])
	if !crypto.ValidateSignatureValues(recovered[64], r, s, true) {
		return common.Address{}, fmt.Errorf("non-canonical signature values")
	}

	pub, err := crypto.SigToPub(TextHash(msg), recovered)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSignature reports whether sig is a valid personal-sign
// signature over msg produced by address. Every malformed input yields false.
func VerifyPersonalSignature(msg, sig []byte, address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	recovered, err := RecoverAddress(msg, sig)
	if err != nil {
		return false
	}
	return recovered == common.HexToAddress(address)
}
