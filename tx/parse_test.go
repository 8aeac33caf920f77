package tx

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransaction_RoundTrip(t *testing.T) {
	txn := testTransaction(t, 2)
	txn.AddOutput(6750, []byte{0x76, 0xa9, 0x14})
	txn.LockTime = 42

	raw, err := txn.SerializeSigned(map[int][]byte{0: {0xaa}, 1: {}})
	require.NoError(t, err)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, txn.Version, parsed.Version)
	assert.Equal(t, txn.LockTime, parsed.LockTime)
	require.Len(t, parsed.Inputs, 2)
	assert.Equal(t, *txn.Inputs[0], parsed.Inputs[0].TxInput)
	assert.Equal(t, *txn.Inputs[1], parsed.Inputs[1].TxInput)
	assert.Equal(t, []byte{0xaa}, parsed.Inputs[0].UnlockingScript)
	assert.Empty(t, parsed.Inputs[1].UnlockingScript)
	require.Len(t, parsed.Outputs, 2)
	assert.Equal(t, txn.Outputs[1], parsed.Outputs[1])
}

func TestParseTransaction_Errors(t *testing.T) {
	raw, err := testTransaction(t, 1).SerializeUnsigned()
	require.NoError(t, err)

	t.Run("truncated at every length", func(t *testing.T) {
		for n := 0; n < len(raw); n++ {
			_, err := ParseTransaction(raw[:n])
			require.Error(t, err, "length %d", n)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := ParseTransaction(append(append([]byte(nil), raw...), 0x00))
		assert.ErrorIs(t, err, ErrMalformedScript)
	})

	t.Run("script length past end", func(t *testing.T) {
		bad := append([]byte(nil), raw...)
		// Unlocking script length sits after version, count, txid and vout.
		bad[4+1+32+4] = 0xfc
		_, err := ParseTransaction(bad)
		assert.ErrorIs(t, err, ErrMalformedScript)
	})

	t.Run("absurd input count", func(t *testing.T) {
		_, err := ParseTransaction([]byte{1, 0, 0, 0, 0xfe, 0xff, 0xff, 0xff, 0x00})
		assert.ErrorIs(t, err, ErrTruncatedInput)
	})
}

func TestSplice_MatchesSerializeSigned(t *testing.T) {
	txn := testTransaction(t, 3)
	unsigned, err := txn.SerializeUnsigned()
	require.NoError(t, err)

	scripts := map[int][]byte{1: bytes.Repeat([]byte{0x42}, 107), 2: {0x01, 0x02}}
	spliced, err := Splice(unsigned, scripts)
	require.NoError(t, err)

	want, err := txn.SerializeSigned(map[int][]byte{0: nil, 1: scripts[1], 2: scripts[2]})
	require.NoError(t, err)
	assert.Equal(t, want, spliced)
}

func TestSplice_LeavesOtherBytesAlone(t *testing.T) {
	txn := testTransaction(t, 2)
	raw, err := txn.SerializeSigned(map[int][]byte{0: {0x51, 0x52}, 1: {}})
	require.NoError(t, err)

	// Set the high half of the amount, which our own writer never does.
	amtOffset := len(raw) - 4 - 2 - 8
	binary.LittleEndian.PutUint64(raw[amtOffset:], 1<<32+1000)

	spliced, err := Splice(raw, map[int][]byte{1: {0xde, 0xad}})
	require.NoError(t, err)

	parsed, err := ParseTransaction(spliced)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<32+1000), parsed.Outputs[0].Satoshis)
	assert.Equal(t, []byte{0x51, 0x52}, parsed.Inputs[0].UnlockingScript)
	assert.Equal(t, []byte{0xde, 0xad}, parsed.Inputs[1].UnlockingScript)

	// Prefix up to input 1's script and the tail after it are unchanged.
	start := parsed.Inputs[1].scriptStart
	assert.Equal(t, raw[:start], spliced[:start])
	assert.Equal(t, raw[start+1:], spliced[start+3:])
}

func TestSplice_Errors(t *testing.T) {
	txn := testTransaction(t, 2)
	raw, err := txn.SerializeSigned(map[int][]byte{0: {0x51}, 1: {}})
	require.NoError(t, err)

	_, err = Splice(raw, map[int][]byte{0: {0x01}})
	assert.ErrorIs(t, err, ErrInvalidParams, "slot already filled")

	_, err = Splice(raw, map[int][]byte{2: {0x01}})
	assert.ErrorIs(t, err, ErrInvalidParams, "out of range")

	_, err = Splice(raw, map[int][]byte{-1: {0x01}})
	assert.ErrorIs(t, err, ErrInvalidParams, "negative index")

	_, err = Splice(raw[:10], map[int][]byte{1: {0x01}})
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestSplice_NoScripts(t *testing.T) {
	raw, err := testTransaction(t, 1).SerializeUnsigned()
	require.NoError(t, err)

	out, err := Splice(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func FuzzParseTransactionNoPanic(f *testing.F) {
	txn := NewTransaction()
	in, _ := NewTxInput(testTxID, 1)
	txn.AddInput(in)
	txn.AddOutput(1, []byte{0x51})
	raw, _ := txn.SerializeUnsigned()
	f.Add(raw)
	f.Add([]byte{})
	f.Add([]byte{1, 0, 0, 0, 0xfd, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, b []byte) {
		parsed, err := ParseTransaction(b)
		if err != nil {
			return
		}
		// Splicing nothing is the identity on any parseable input.
		out, err := Splice(b, nil)
		if err != nil {
			t.Fatalf("Splice: %v", err)
		}
		if !bytes.Equal(out, b) {
			t.Fatal("Splice with no scripts changed the bytes")
		}
		_ = parsed
	})
}
