package scheme

// Signer is the only code path allowed to see private key material.
// The scheme hands it the canonical signing bytes of a transaction and
// receives a raw ed25519 signature back; key storage is the caller's
// concern entirely.
type Signer interface {
	Sign(txBytes []byte) ([]byte, error)
}
