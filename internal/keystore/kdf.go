package keystore

import (
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	kdfArgon2id = "argon2id"

	defaultArgonVersion = uint32(19)
	defaultArgonTime    = uint32(3)
	defaultArgonMemKB   = uint32(64 * 1024)
	defaultArgonThreads = uint8(4)
	derivedKeyLen       = uint32(32)
)

var ErrUnsupportedKDF = errors.New("keystore: unsupported kdf parameters")

// KDFParams pins the key-derivation function a record was encrypted with.
// The derived key is the raw argon2id output, never an encoded hash string.
type KDFParams struct {
	Name     string `json:"name"`
	Version  uint32 `json:"version"`
	Time     uint32 `json:"time"`
	MemoryKB uint32 `json:"memory_kb"`
	Threads  uint8  `json:"threads"`
	KeyLen   uint32 `json:"key_len"`
}

// DefaultKDFParams matches the encrypting wallet implementation. Records that
// carry no explicit parameter block were produced with these.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Name:     kdfArgon2id,
		Version:  defaultArgonVersion,
		Time:     defaultArgonTime,
		MemoryKB: defaultArgonMemKB,
		Threads:  defaultArgonThreads,
		KeyLen:   derivedKeyLen,
	}
}

// DeriveKey derives the symmetric record key from a password and salt.
// Unknown parameter sets fail closed before any derivation work happens.
func DeriveKey(password string, salt []byte, params KDFParams) ([]byte, error) {
	if params.Name != kdfArgon2id || params.Version != defaultArgonVersion {
		return nil, ErrUnsupportedKDF
	}
	if params.Time == 0 || params.MemoryKB == 0 || params.Threads == 0 || params.KeyLen != derivedKeyLen {
		return nil, ErrUnsupportedKDF
	}
	return argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKB, params.Threads, params.KeyLen), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
