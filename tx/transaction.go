package tx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

const (
	// DefaultVersion is the transaction version used by every flow.
	DefaultVersion = uint32(1)

	// DefaultSequence marks an input as final.
	DefaultSequence = uint32(0xffffffff)

	// TxIDLen is the length of a transaction id.
	TxIDLen = 32
)

// TxInput references a previous output. PrevTxID is kept in wire order,
// i.e. reversed relative to the hex txid shown to users.
type TxInput struct {
	PrevTxID    chainhash.Hash
	OutputIndex uint32
	Sequence    uint32
}

// NewTxInput builds a final input spending txid:vout, where txid is the
// usual display-order hex string.
func NewTxInput(txid string, outputIndex uint32) (*TxInput, error) {
	h, err := HashFromHex(txid)
	if err != nil {
		return nil, err
	}
	return &TxInput{PrevTxID: *h, OutputIndex: outputIndex, Sequence: DefaultSequence}, nil
}

// PrevTxIDHex returns the previous txid in display order.
func (in *TxInput) PrevTxIDHex() string {
	return in.PrevTxID.String()
}

// TxOutput is an amount plus its locking script.
type TxOutput struct {
	Satoshis      uint64
	LockingScript []byte
}

// Truncated reports whether the amount exceeds what the wire encoding keeps.
// Only the low 4 bytes of the amount are written; see writeOutput.
func (o *TxOutput) Truncated() bool {
	return o.Satoshis > math.MaxUint32
}

// Transaction is the in-memory model built fresh for each flow.
type Transaction struct {
	Version  uint32
	Inputs   []*TxInput
	Outputs  []*TxOutput
	LockTime uint32
}

// NewTransaction returns an empty version 1 transaction.
func NewTransaction() *Transaction {
	return &Transaction{Version: DefaultVersion}
}

// AddInput appends in and returns its index.
func (t *Transaction) AddInput(in *TxInput) int {
	t.Inputs = append(t.Inputs, in)
	return len(t.Inputs) - 1
}

// AddOutput appends an output and returns its index.
func (t *Transaction) AddOutput(satoshis uint64, lockingScript []byte) int {
	t.Outputs = append(t.Outputs, &TxOutput{Satoshis: satoshis, LockingScript: lockingScript})
	return len(t.Outputs) - 1
}

// TotalOut sums the output amounts.
func (t *Transaction) TotalOut() uint64 {
	var sum uint64
	for _, o := range t.Outputs {
		sum += o.Satoshis
	}
	return sum
}

// SerializeUnsigned writes the transaction with every unlocking script empty.
// These are the bytes handed to the external signer.
func (t *Transaction) SerializeUnsigned() ([]byte, error) {
	return t.serialize(func(int) []byte { return nil })
}

// SerializeSigned writes the transaction with unlocking scripts taken from
// scripts, keyed by input index. Every input in [0, len(Inputs)) must have an
// entry, otherwise a *MissingSignatureError naming the first gap is returned
// and nothing is written.
func (t *Transaction) SerializeSigned(scripts map[int][]byte) ([]byte, error) {
	for i := range t.Inputs {
		if _, ok := scripts[i]; !ok {
			return nil, &MissingSignatureError{InputIndex: i}
		}
	}
	return t.serialize(func(i int) []byte { return scripts[i] })
}

func (t *Transaction) serialize(unlocking func(int) []byte) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transaction", ErrNilParam)
	}
	buf := make([]byte, 0, t.sizeHint())
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	var err error
	if buf, err = writeVarInt(buf, uint64(len(t.Inputs))); err != nil {
		return nil, err
	}
	for i, in := range t.Inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: input %d", ErrNilParam, i)
		}
		buf = append(buf, in.PrevTxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.OutputIndex)
		if buf, err = writeScript(buf, unlocking(i)); err != nil {
			return nil, err
		}
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	if buf, err = writeVarInt(buf, uint64(len(t.Outputs))); err != nil {
		return nil, err
	}
	for i, out := range t.Outputs {
		if out == nil {
			return nil, fmt.Errorf("%w: output %d", ErrNilParam, i)
		}
		if buf, err = writeOutput(buf, out); err != nil {
			return nil, err
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf, nil
}

func (t *Transaction) sizeHint() int {
	n := 10 + 41*len(t.Inputs)
	for _, o := range t.Outputs {
		if o != nil {
			n += 9 + len(o.LockingScript)
		}
	}
	return n
}

// writeOutput writes the amount as 8 bytes with the high half zeroed,
// so amounts of 2^32 satoshis or more are truncated on the wire.
func writeOutput(buf []byte, out *TxOutput) ([]byte, error) {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(out.Satoshis))
	buf = append(buf, 0, 0, 0, 0)
	return writeScript(buf, out.LockingScript)
}

func writeScript(buf, s []byte) ([]byte, error) {
	buf, err := writeVarInt(buf, uint64(len(s)))
	if err != nil {
		return nil, err
	}
	return append(buf, s...), nil
}

func writeVarInt(buf []byte, v uint64) ([]byte, error) {
	enc, err := EncodeVarInt(v)
	if err != nil {
		return nil, err
	}
	return append(buf, enc...), nil
}

// TxID returns the display-order transaction id of raw transaction bytes.
func TxID(raw []byte) string {
	return chainhash.DoubleHashH(raw).String()
}

// HashFromHex parses a display-order hex txid into a wire-order hash.
// chainhash zero-pads short input, so the length is checked first.
func HashFromHex(txid string) (*chainhash.Hash, error) {
	if len(txid) != 2*TxIDLen {
		return nil, fmt.Errorf("%w: %q is %d characters", ErrInvalidTxID, txid, len(txid))
	}
	h, err := chainhash.NewHashFromHex(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTxID, err)
	}
	return h, nil
}
