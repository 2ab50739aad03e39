package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signature is the r/s/v envelope Hyperliquid expects on exchange actions.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer holds the secp256k1 API wallet key and signs exchange actions.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

func NewSigner(privateKeyHex string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	privateKey, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, nil
}

// Address returns the wallet address derived from the signing key.
func (s *Signer) Address() string {
	return s.address
}

// SignAction signs the serialized action bound to its nonce. The nonce is
// appended big-endian so a replayed action body cannot reuse a signature.
func (s *Signer) SignAction(actionBytes []byte, nonce int64) (*Signature, error) {
	msg := make([]byte, 0, len(actionBytes)+8)
	msg = append(msg, actionBytes...)
	msg = binary.BigEndian.AppendUint64(msg, uint64(nonce))

	hash := crypto.Keccak256Hash(msg)

	sig, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign action: %w", err)
	}

	// go-ethereum returns [R || S || V] with V in {0, 1}.
	return &Signature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}
