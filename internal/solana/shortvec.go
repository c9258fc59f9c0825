package solana

import "errors"

var errShortvec = errors.New("solana: truncated shortvec")

// The ledger's wire format length-prefixes arrays with a compact-u16:
// little-endian base-128 varint capped at three bytes.

func encodeShortvec(n int) []byte {
	out := make([]byte, 0, 3)
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

func decodeShortvec(data []byte) (int, int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, errShortvec
		}
		b := data[i]
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(value), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errShortvec
}
