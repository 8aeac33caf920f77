package tx

import (
	"encoding/binary"
	"fmt"
)

// Varint markers. The 8-byte form (0xff) is not supported.
const (
	varIntMarker16 = 0xfd
	varIntMarker32 = 0xfe
	varIntMarker64 = 0xff
)

// MaxVarInt is the largest value EncodeVarInt accepts.
const MaxVarInt = uint64(0xffffffff)

// EncodeVarInt encodes v as a compact variable-length integer.
// Values above MaxVarInt fail with ErrValueTooLarge.
func EncodeVarInt(v uint64) ([]byte, error) {
	switch {
	case v < varIntMarker16:
		return []byte{byte(v)}, nil
	case v < 0x10000:
		b := make([]byte, 3)
		b[0] = varIntMarker16
		binary.LittleEndian.PutUint16(b[1:], uint16(v))
		return b, nil
	case v <= MaxVarInt:
		b := make([]byte, 5)
		b[0] = varIntMarker32
		binary.LittleEndian.PutUint32(b[1:], uint32(v))
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrValueTooLarge, v)
	}
}

// VarIntSize returns the encoded length of v, or 0 if v is out of range.
func VarIntSize(v uint64) int {
	switch {
	case v < varIntMarker16:
		return 1
	case v < 0x10000:
		return 3
	case v <= MaxVarInt:
		return 5
	default:
		return 0
	}
}

// DecodeVarInt reads a varint from b starting at offset and returns the value
// and the number of bytes consumed.
func DecodeVarInt(b []byte, offset int) (uint64, int, error) {
	if offset < 0 || offset >= len(b) {
		return 0, 0, fmt.Errorf("%w: varint at offset %d", ErrTruncatedInput, offset)
	}
	rest := b[offset:]
	switch rest[0] {
	case varIntMarker16:
		if len(rest) < 3 {
			return 0, 0, fmt.Errorf("%w: 2-byte varint at offset %d", ErrTruncatedInput, offset)
		}
		return uint64(binary.LittleEndian.Uint16(rest[1:3])), 3, nil
	case varIntMarker32:
		if len(rest) < 5 {
			return 0, 0, fmt.Errorf("%w: 4-byte varint at offset %d", ErrTruncatedInput, offset)
		}
		return uint64(binary.LittleEndian.Uint32(rest[1:5])), 5, nil
	case varIntMarker64:
		return 0, 0, fmt.Errorf("%w: 8-byte varint at offset %d", ErrValueTooLarge, offset)
	default:
		return uint64(rest[0]), 1, nil
	}
}
