package signer

import "github.com/ProtonMail/go-crypto/openpgp"

// Signer interface for signing generated formulas
type Signer interface {
	// SignDetached creates an armored detached signature (for Formula/<name>.rb.asc)
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the public key
	GetPublicKey() ([]byte, error)
}

// CommitSigner is a Signer that can also sign git commits
type CommitSigner interface {
	Signer

	// Entity returns the OpenPGP entity used for commit signatures
	Entity() *openpgp.Entity
}
