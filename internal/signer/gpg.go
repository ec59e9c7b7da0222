package signer

import (
	"bytes"
	"crypto"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// GPGSigner implements CommitSigner using an OpenPGP private key
type GPGSigner struct {
	entity *openpgp.Entity
}

var _ CommitSigner = (*GPGSigner)(nil)

// NewGPGSigner creates a new GPG signer from a private key file
func NewGPGSigner(keyPath, passphrase string) (*GPGSigner, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("key path is empty")
	}

	// Read private key file
	keyFile, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer keyFile.Close()

	return ReadGPGSigner(keyFile, passphrase)
}

// ReadGPGSigner reads an armored or binary private key from r
func ReadGPGSigner(r io.ReadSeeker, passphrase string) (*GPGSigner, error) {
	// Try to parse as armored key first
	entityList, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		// Try as binary key
		if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
			return nil, seekErr
		}
		entityList, err = openpgp.ReadKeyRing(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}

	if len(entityList) == 0 {
		return nil, fmt.Errorf("no keys found in key file")
	}

	entity := entityList[0]
	if entity.PrivateKey == nil {
		return nil, fmt.Errorf("key %X has no private part", entity.PrimaryKey.Fingerprint)
	}

	if entity.PrivateKey.Encrypted {
		if passphrase == "" {
			return nil, fmt.Errorf("private key is encrypted but no passphrase was given")
		}
		if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
			return nil, fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}

	// Decrypt subkeys as well
	for _, subkey := range entity.Subkeys {
		if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
			if err := subkey.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("failed to decrypt subkey: %w", err)
			}
		}
	}

	return &GPGSigner{entity: entity}, nil
}

// NewGPGSignerFromEntity wraps an already decrypted entity
func NewGPGSignerFromEntity(entity *openpgp.Entity) *GPGSigner {
	return &GPGSigner{entity: entity}
}

// Entity returns the OpenPGP entity used for commit signatures
func (s *GPGSigner) Entity() *openpgp.Entity {
	return s.entity
}

// SignDetached creates an armored detached signature
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), &packet.Config{
		DefaultHash: crypto.SHA512,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create detached signature: %w", err)
	}

	return buf.Bytes(), nil
}

// GetPublicKey returns the public key in armored format
func (s *GPGSigner) GetPublicKey() ([]byte, error) {
	var buf bytes.Buffer

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}

	err = s.entity.Serialize(w)
	if err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
