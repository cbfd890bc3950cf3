package helm

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func JsonPrint(tag string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: error marshaling: %v\n", tag, err)
		return
	}
	fmt.Printf("%s: %s\n", tag, string(b))
}

// GetHash returns keccak256(data).
func GetHash(data []byte) []byte {
	return crypto.Keccak256(data)
}

func LoadPrivateKey(privatekey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func PrivKeyToAddr(privatekey string) (common.Address, error) {
	key, err := LoadPrivateKey(privatekey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// SignBytes signs keccak256(data) and returns the 65 byte [R || S || V] signature.
func SignBytes(data []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(GetHash(data), key)
}

// RecoverSigner recovers the identity that produced signature over data.
// V may be given as 0/1 or 27/28.
func RecoverSigner(data []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(GetHash(data), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks signature over data was made by signer.
func VerifySignature(data []byte, signature []byte, signer common.Address) error {
	recovered, err := RecoverSigner(data, signature)
	if err != nil {
		return err
	}
	if recovered != signer {
		return fmt.Errorf("signature mismatch: expected %s, got %s", signer.Hex(), recovered.Hex())
	}
	return nil
}

// Sign serializes doc and wraps it with a secp256k1 proof.
func Sign[T any](doc Document[T], key *ecdsa.PrivateKey) (SignedDocument, error) {
	if doc.Signer == "" {
		doc.Signer = crypto.PubkeyToAddress(key.PublicKey).Hex()
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return SignedDocument{}, err
	}
	sig, err := SignBytes(raw, key)
	if err != nil {
		return SignedDocument{}, err
	}
	return SignedDocument{
		Document: string(raw),
		Proof: Proof{
			Type:      ProofTypeSecp256k1,
			Signature: hex.EncodeToString(sig),
		},
	}, nil
}
