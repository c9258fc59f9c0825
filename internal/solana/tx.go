package solana

import (
	"bytes"
	"errors"

	"github.com/mr-tron/base58/base58"
)

const (
	signatureSize = 64
	publicKeySize = 32
	blockhashSize = 32

	versionPrefixMask = 0x80
)

var (
	ErrMalformedTransaction = errors.New("solana: malformed transaction")
	ErrSignerNotInAccounts  = errors.New("solana: signer is not a required signer of this transaction")
)

// Transaction is a deserialized transaction envelope: the signature table
// plus the untouched serialized message. The message is never re-encoded, so
// the bytes that get signed are exactly the bytes the builder produced,
// ordering token included.
type Transaction struct {
	Signatures [][]byte
	Message    []byte
}

type messageLayout struct {
	version           int // -1 for legacy
	requiredSigners   int
	accountKeysOffset int
	accountKeys       int
	blockhashOffset   int
}

// Parse decodes a serialized transaction (legacy or v0 envelope).
func Parse(raw []byte) (*Transaction, error) {
	count, n, err := decodeShortvec(raw)
	if err != nil {
		return nil, ErrMalformedTransaction
	}
	off := n
	sigs := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if off+signatureSize > len(raw) {
			return nil, ErrMalformedTransaction
		}
		sigs = append(sigs, append([]byte(nil), raw[off:off+signatureSize]...))
		off += signatureSize
	}
	message := append([]byte(nil), raw[off:]...)
	tx := &Transaction{Signatures: sigs, Message: message}
	if _, err := tx.layout(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Serialize re-encodes the envelope around the original message bytes.
func (tx *Transaction) Serialize() []byte {
	out := encodeShortvec(len(tx.Signatures))
	for _, sig := range tx.Signatures {
		out = append(out, sig...)
	}
	return append(out, tx.Message...)
}

func (tx *Transaction) layout() (messageLayout, error) {
	msg := tx.Message
	var l messageLayout
	l.version = -1
	off := 0
	if len(msg) == 0 {
		return l, ErrMalformedTransaction
	}
	if msg[0]&versionPrefixMask != 0 {
		l.version = int(msg[0] &^ versionPrefixMask)
		off = 1
	}
	if off+3 > len(msg) {
		return l, ErrMalformedTransaction
	}
	l.requiredSigners = int(msg[off])
	off += 3
	count, n, err := decodeShortvec(msg[off:])
	if err != nil {
		return l, ErrMalformedTransaction
	}
	off += n
	l.accountKeysOffset = off
	l.accountKeys = count
	off += count * publicKeySize
	l.blockhashOffset = off
	if off+blockhashSize > len(msg) {
		return l, ErrMalformedTransaction
	}
	if l.requiredSigners == 0 || l.requiredSigners > count {
		return l, ErrMalformedTransaction
	}
	return l, nil
}

// RecentBlockhash returns the base58 ordering token embedded in the message.
// It must be read from the transaction being signed, never fetched again.
func (tx *Transaction) RecentBlockhash() (string, error) {
	l, err := tx.layout()
	if err != nil {
		return "", err
	}
	return base58.Encode(tx.Message[l.blockhashOffset : l.blockhashOffset+blockhashSize]), nil
}

// RequiredSigners returns the public keys that must sign, in signature-table
// order.
func (tx *Transaction) RequiredSigners() ([][]byte, error) {
	l, err := tx.layout()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, l.requiredSigners)
	for i := 0; i < l.requiredSigners; i++ {
		start := l.accountKeysOffset + i*publicKeySize
		out = append(out, append([]byte(nil), tx.Message[start:start+publicKeySize]...))
	}
	return out, nil
}

// Signer signs the exact serialized message bytes.
type Signer interface {
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

// Sign places the signer's signature in its slot of the signature table,
// preserving any co-signatures already present (a sponsoring fee payer signs
// its own slot out of band).
func (tx *Transaction) Sign(signer Signer) error {
	signers, err := tx.RequiredSigners()
	if err != nil {
		return err
	}
	pub := signer.PublicKey()
	slot := -1
	for i, key := range signers {
		if bytes.Equal(key, pub) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return ErrSignerNotInAccounts
	}

	sig, err := signer.Sign(tx.Message)
	if err != nil {
		return err
	}
	for len(tx.Signatures) < len(signers) {
		tx.Signatures = append(tx.Signatures, make([]byte, signatureSize))
	}
	tx.Signatures[slot] = sig
	return nil
}
