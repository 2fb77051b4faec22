package types

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// TxVersion is the transaction format version constructed by this module.
const TxVersion = 2

// Transaction is the native MultiversX transfer transaction. Field order
// matters: SigningBytes serializes the struct in declaration order and
// the signature covers those exact bytes.
type Transaction struct {
	// Nonce is the sender account's sequence counter, not the payment
	// correlation nonce.
	Nonce    uint64 `json:"nonce"`
	Value    string `json:"value"`
	Receiver string `json:"receiver"`
	Sender   string `json:"sender"`
	GasPrice uint64 `json:"gasPrice"`
	GasLimit uint64 `json:"gasLimit"`
	Data     []byte `json:"data,omitempty"`
	ChainID  string `json:"chainID"`
	Version  int    `json:"version"`
	Relayer  string `json:"relayer,omitempty"`

	// Signature is hex encoded; empty until signed.
	Signature string `json:"signature,omitempty"`
}

// SigningBytes returns the canonical byte sequence covered by the
// signature: the JSON serialization with the signature field absent.
func (t *Transaction) SigningBytes() ([]byte, error) {
	unsigned := *t
	unsigned.Signature = ""
	b, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, Errf(ErrSigningFailed, "serializing transaction: %v", err)
	}
	return b, nil
}

// Hash returns the blake2b-256 hash of the signed serialization, hex
// encoded. This matches the identifier the network assigns on submission,
// which lets a resubmission of an already-pending transaction be treated
// as a no-op confirmation.
func (t *Transaction) Hash() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", Errf(ErrSigningFailed, "serializing transaction: %v", err)
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// SignatureBytes decodes the hex signature.
func (t *Transaction) SignatureBytes() ([]byte, error) {
	sig, err := hex.DecodeString(t.Signature)
	if err != nil {
		return nil, Errf(ErrInvalidSignature, "signature is not valid hex")
	}
	return sig, nil
}
