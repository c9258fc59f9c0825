package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

const (
	saltSize = 16
	seedSize = 32
)

var ErrDecryptionFailed = errors.New("keystore: decryption failed")

// Secret is the decrypted keystore plaintext. The first 32 bytes are the
// signing seed; anything after it is opaque metadata owned by the encrypting
// implementation and carried through untouched.
type Secret struct {
	Seed [seedSize]byte
	Rest []byte
}

// Zero wipes the secret in place.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	zeroBytes(s.Seed[:])
	zeroBytes(s.Rest)
}

// Decrypt opens the record with a derived key. The AEAD input is
// ciphertext||tag under the 12-byte IV. Authentication failure is reported
// as ErrDecryptionFailed regardless of cause; no plaintext escapes on a
// tag mismatch.
func Decrypt(rec *Record, key []byte) (*Secret, error) {
	if rec == nil || len(rec.Nonce) != nonceSize || len(rec.Tag) != tagSize {
		return nil, ErrInvalidRecord
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	sealed := append(append([]byte(nil), rec.Ciphertext...), rec.Tag...)
	plaintext, err := aead.Open(nil, rec.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer zeroBytes(plaintext)
	if len(plaintext) < seedSize {
		return nil, ErrInvalidRecord
	}
	secret := &Secret{Rest: append([]byte(nil), plaintext[seedSize:]...)}
	copy(secret.Seed[:], plaintext[:seedSize])
	return secret, nil
}

// Unlock derives the record key from a password and decrypts in one step.
func Unlock(rec *Record, password string) (*Secret, error) {
	key, err := DeriveKey(password, rec.Salt, rec.KDF)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)
	return Decrypt(rec, key)
}

// Encrypt seals plaintext into a fresh record with the default parameters.
// Used at wallet initialization; the layout matches what Decrypt expects
// byte for byte.
func Encrypt(plaintext []byte, password string) (*Record, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	params := DefaultKDFParams()
	key, err := DeriveKey(password, salt, params)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	if len(sealed) < tagSize {
		return nil, ErrInvalidRecord
	}
	split := len(sealed) - tagSize
	return &Record{
		Salt:       salt,
		Nonce:      nonce,
		Tag:        append([]byte(nil), sealed[split:]...),
		Ciphertext: append([]byte(nil), sealed[:split]...),
		KDF:        params,
	}, nil
}
