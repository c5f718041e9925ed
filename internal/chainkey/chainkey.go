package chainkey

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey reports text that is not a secp256k1 private key.
var ErrInvalidKey = errors.New("invalid private key")

// Keypair is a freshly generated wallet key and its chain address.
type Keypair struct {
	PrivateKey string // 0x-prefixed hex
	Address    string // EIP-55 checksummed
}

// Generate creates a new wallet keypair.
func Generate() (Keypair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	return Keypair{
		PrivateKey: hexutil.Encode(crypto.FromECDSA(privateKey)),
		Address:    addressOf(privateKey),
	}, nil
}

// AddressOf derives the chain address owned by a hex private key, with or
// without the 0x prefix.
func AddressOf(privateKeyHex string) (string, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return addressOf(privateKey), nil
}

func addressOf(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
}

// SameAddress compares two hex addresses ignoring checksum casing. Malformed
// addresses never match.
func SameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// Normalize returns the checksummed form of a hex address.
func Normalize(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}
