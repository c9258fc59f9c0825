package keystore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	nonceSize = 12
	tagSize   = 16
)

var ErrInvalidRecord = errors.New("keystore: record is invalid")

// Record is the decoded keystore file. On disk the nonce field stores the
// 12-byte GCM IV concatenated with the 16-byte authentication tag; Parse
// splits it so the two travel separately until decryption reassembles them.
type Record struct {
	Salt       []byte
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
	KDF        KDFParams
}

type recordFile struct {
	Salt      string      `json:"salt"`
	Encrypted encryptedTx `json:"encrypted"`
	KDF       *KDFParams  `json:"kdf,omitempty"`
}

type encryptedTx struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Parse decodes the wallet keystore JSON layout.
func Parse(raw []byte) (*Record, error) {
	var file recordFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, ErrInvalidRecord
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil || len(salt) == 0 {
		return nil, ErrInvalidRecord
	}
	nonceFull, err := base64.StdEncoding.DecodeString(file.Encrypted.Nonce)
	if err != nil || len(nonceFull) != nonceSize+tagSize {
		return nil, ErrInvalidRecord
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.Encrypted.Ciphertext)
	if err != nil {
		return nil, ErrInvalidRecord
	}
	rec := &Record{
		Salt:       salt,
		Nonce:      append([]byte(nil), nonceFull[:nonceSize]...),
		Tag:        append([]byte(nil), nonceFull[nonceSize:]...),
		Ciphertext: ciphertext,
		KDF:        DefaultKDFParams(),
	}
	if file.KDF != nil {
		rec.KDF = *file.KDF
	}
	return rec, nil
}

// Load reads and parses a keystore file.
func Load(path string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Marshal encodes the record back into the wallet file layout.
func (r *Record) Marshal() ([]byte, error) {
	if len(r.Nonce) != nonceSize || len(r.Tag) != tagSize {
		return nil, ErrInvalidRecord
	}
	nonceFull := append(append([]byte(nil), r.Nonce...), r.Tag...)
	file := recordFile{
		Salt: base64.StdEncoding.EncodeToString(r.Salt),
		Encrypted: encryptedTx{
			Nonce:      base64.StdEncoding.EncodeToString(nonceFull),
			Ciphertext: base64.StdEncoding.EncodeToString(r.Ciphertext),
		},
	}
	return json.Marshal(file)
}

// Write persists the record with private permissions, creating the parent
// directory owner-only when it does not exist yet.
func (r *Record) Write(path string) error {
	raw, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
