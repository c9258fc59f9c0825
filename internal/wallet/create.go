package wallet

import (
	"crypto/sha256"
	"errors"
	"io"
	"strings"

	"fuego-wallet/go-agent/internal/keystore"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfoSigning = "fuego/wallet/signing/v1"

var (
	ErrInvalidMnemonic  = errors.New("wallet: invalid mnemonic")
	ErrPasswordRequired = errors.New("wallet: password is required")
)

// Created is the result of initializing a new wallet: the encrypted keystore
// record to persist, the address, and the mnemonic to show the user exactly
// once. The in-memory identity is live and must be zeroed by the caller.
type Created struct {
	Record   *keystore.Record
	Identity *Identity
	Mnemonic string
}

// Create generates a fresh mnemonic-backed wallet encrypted under password.
func Create(password string) (*Created, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return Import(mnemonic, password)
}

// Import derives the signing seed from an existing mnemonic and encrypts it
// under password. The bip39 seed is domain-separated through HKDF so the
// signing key cannot collide with any future derived material.
func Import(mnemonic, password string) (*Created, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if strings.TrimSpace(password) == "" {
		return nil, ErrPasswordRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seedBytes := bip39.NewSeed(mnemonic, "")
	signingSeed, err := hkdfExpand(seedBytes, hkdfInfoSigning, 32)
	if err != nil {
		return nil, err
	}

	var secret keystore.Secret
	copy(secret.Seed[:], signingSeed)
	defer secret.Zero()
	for i := range signingSeed {
		signingSeed[i] = 0
	}

	rec, err := keystore.Encrypt(secret.Seed[:], password)
	if err != nil {
		return nil, err
	}
	return &Created{
		Record:   rec,
		Identity: NewIdentity(&secret),
		Mnemonic: mnemonic,
	}, nil
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
