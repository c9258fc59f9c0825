package wallet

import (
	"crypto/ed25519"
	"errors"
	"sync"

	"fuego-wallet/go-agent/internal/keystore"

	"github.com/mr-tron/base58/base58"
)

var ErrIdentityClosed = errors.New("wallet: identity has been zeroed")

// Identity wraps the decrypted signing key for the lifetime of an agent run.
// It is the only long-lived holder of the seed; concurrent sessions share one
// Identity and signing is serialized on its mutex. The seed is never copied
// out.
type Identity struct {
	mu      sync.Mutex
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// NewIdentity builds an identity from a decrypted keystore secret.
func NewIdentity(secret *keystore.Secret) *Identity {
	priv := ed25519.NewKeyFromSeed(secret.Seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		priv:    priv,
		pub:     pub,
		address: base58.Encode(pub),
	}
}

// Address returns the base58 public address.
func (id *Identity) Address() string {
	return id.address
}

// PublicKey returns a copy of the public key bytes.
func (id *Identity) PublicKey() []byte {
	return append([]byte(nil), id.pub...)
}

// Sign signs message bytes. The caller is responsible for passing the exact
// serialized message of the transaction being signed, including its embedded
// ordering token; this method does not inspect the payload.
func (id *Identity) Sign(message []byte) ([]byte, error) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.priv == nil {
		return nil, ErrIdentityClosed
	}
	return ed25519.Sign(id.priv, message), nil
}

// ExportSecret returns the base58 secret key (seed || public key). Reserved
// for the explicit wallet export command; everything else signs through Sign.
func (id *Identity) ExportSecret() (string, error) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.priv == nil {
		return "", ErrIdentityClosed
	}
	return base58.Encode(id.priv), nil
}

// Zero wipes the private key. The identity is unusable afterwards.
func (id *Identity) Zero() {
	id.mu.Lock()
	defer id.mu.Unlock()
	for i := range id.priv {
		id.priv[i] = 0
	}
	id.priv = nil
}
