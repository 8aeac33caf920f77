package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// ParsedInput is an input decoded from externally supplied bytes, with the
// location of its unlocking-script field in the raw transaction.
type ParsedInput struct {
	TxInput
	UnlockingScript []byte

	// scriptStart is the offset of the length prefix, scriptEnd the offset
	// just past the script bytes.
	scriptStart int
	scriptEnd   int
}

// ParsedTx is a decoded transaction. Output amounts keep all 64 bits.
type ParsedTx struct {
	Version  uint32
	Inputs   []*ParsedInput
	Outputs  []*TxOutput
	LockTime uint32
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) next(n int, what string) ([]byte, error) {
	if n < 0 || len(r.b)-r.off < n {
		return nil, fmt.Errorf("%w: %s at offset %d", ErrTruncatedInput, what, r.off)
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) uint32(what string) (uint32, error) {
	b, err := r.next(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) varInt() (uint64, error) {
	v, n, err := DecodeVarInt(r.b, r.off)
	if err != nil {
		return 0, err
	}
	r.off += n
	return v, nil
}

func (r *reader) script(what string) ([]byte, error) {
	l, err := r.varInt()
	if err != nil {
		return nil, err
	}
	if l > uint64(len(r.b)-r.off) {
		return nil, fmt.Errorf("%w: %s length %d exceeds remaining %d bytes",
			ErrMalformedScript, what, l, len(r.b)-r.off)
	}
	return r.next(int(l), what)
}

// ParseTransaction decodes raw transaction bytes.
func ParseTransaction(raw []byte) (*ParsedTx, error) {
	r := &reader{b: raw}
	t := &ParsedTx{}

	var err error
	if t.Version, err = r.uint32("version"); err != nil {
		return nil, err
	}

	nIn, err := r.varInt()
	if err != nil {
		return nil, err
	}
	// Each input needs at least 41 bytes.
	if nIn > uint64(len(raw)/41) {
		return nil, fmt.Errorf("%w: %d inputs in %d bytes", ErrTruncatedInput, nIn, len(raw))
	}
	t.Inputs = make([]*ParsedInput, 0, nIn)
	for i := uint64(0); i < nIn; i++ {
		in := &ParsedInput{}
		prev, err := r.next(TxIDLen, "prev txid")
		if err != nil {
			return nil, err
		}
		h, err := chainhash.NewHash(prev)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTxID, err)
		}
		in.PrevTxID = *h
		if in.OutputIndex, err = r.uint32("output index"); err != nil {
			return nil, err
		}
		in.scriptStart = r.off
		if in.UnlockingScript, err = r.script("unlocking script"); err != nil {
			return nil, err
		}
		in.scriptEnd = r.off
		if in.Sequence, err = r.uint32("sequence"); err != nil {
			return nil, err
		}
		t.Inputs = append(t.Inputs, in)
	}

	nOut, err := r.varInt()
	if err != nil {
		return nil, err
	}
	// Each output needs at least 9 bytes.
	if nOut > uint64(len(raw)/9) {
		return nil, fmt.Errorf("%w: %d outputs in %d bytes", ErrTruncatedInput, nOut, len(raw))
	}
	t.Outputs = make([]*TxOutput, 0, nOut)
	for i := uint64(0); i < nOut; i++ {
		amt, err := r.next(8, "amount")
		if err != nil {
			return nil, err
		}
		s, err := r.script("locking script")
		if err != nil {
			return nil, err
		}
		t.Outputs = append(t.Outputs, &TxOutput{
			Satoshis:      binary.LittleEndian.Uint64(amt),
			LockingScript: append([]byte(nil), s...),
		})
	}

	if t.LockTime, err = r.uint32("lock time"); err != nil {
		return nil, err
	}
	if r.off != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedScript, len(raw)-r.off)
	}
	return t, nil
}

// Splice returns a copy of raw with the unlocking scripts in scripts written
// into the given input slots. Every byte outside those slots is copied
// unchanged. Each target slot must currently be empty.
func Splice(raw []byte, scripts map[int][]byte) ([]byte, error) {
	t, err := ParseTransaction(raw)
	if err != nil {
		return nil, err
	}
	for idx := range scripts {
		if idx < 0 || idx >= len(t.Inputs) {
			return nil, fmt.Errorf("%w: input index %d out of range [0, %d)",
				ErrInvalidParams, idx, len(t.Inputs))
		}
		if len(t.Inputs[idx].UnlockingScript) != 0 {
			return nil, fmt.Errorf("%w: input %d already has an unlocking script",
				ErrInvalidParams, idx)
		}
	}

	extra := 0
	for _, s := range scripts {
		extra += len(s) + 5
	}
	out := make([]byte, 0, len(raw)+extra)
	cursor := 0
	for i, in := range t.Inputs {
		s, ok := scripts[i]
		if !ok {
			continue
		}
		out = append(out, raw[cursor:in.scriptStart]...)
		if out, err = writeScript(out, s); err != nil {
			return nil, err
		}
		cursor = in.scriptEnd
	}
	out = append(out, raw[cursor:]...)
	return out, nil
}
