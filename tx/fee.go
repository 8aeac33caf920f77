package tx

import "fmt"

// Size constants for a single-signature P2PKH transaction.
const (
	// TxOverheadSize covers version, counts and lock time.
	TxOverheadSize = 10

	// P2PKHInputSize is the approximate size of a signed P2PKH input.
	P2PKHInputSize = 148

	// P2PKHOutputSize is the size of a P2PKH output.
	P2PKHOutputSize = 34

	// DefaultOutputCount is the output count assumed by SelectUtxos
	// (recipient plus change).
	DefaultOutputCount = 2
)

// DefaultFeeRate is the default fee rate in sat/KB.
const DefaultFeeRate = uint64(100)

// EstimateTxSize estimates the serialized size in bytes.
func EstimateTxSize(numInputs, numOutputs int) int {
	return TxOverheadSize + numInputs*P2PKHInputSize + numOutputs*P2PKHOutputSize
}

// EstimateFee returns ceil(size * satsPerKB / 1000).
func EstimateFee(numInputs, numOutputs int, satsPerKB uint64) uint64 {
	return feeForSize(EstimateTxSize(numInputs, numOutputs), satsPerKB)
}

func feeForSize(size int, satsPerKB uint64) uint64 {
	return (uint64(size)*satsPerKB + 999) / 1000
}

// Selection is the result of coin selection.
type Selection struct {
	Selected []*Utxo
	Change   uint64
	Fee      uint64
}

// Total returns the sum of the selected amounts.
func (s *Selection) Total() uint64 {
	var sum uint64
	for _, u := range s.Selected {
		sum += u.Satoshis
	}
	return sum
}

// SelectParams describes a selection with optional pre-chosen inputs.
type SelectParams struct {
	// Candidates are considered greedily in the order given.
	Candidates []*Utxo

	// Target is the amount the selected inputs must pay for, excluding fee.
	Target uint64

	// FeeRate is in sat/KB.
	FeeRate uint64

	// FixedInputs counts inputs already placed in the transaction.
	FixedInputs int

	// FixedSatoshis is the amount those inputs contribute toward Target.
	FixedSatoshis uint64

	// Outputs is the output count used for the estimate. Zero means
	// DefaultOutputCount.
	Outputs int

	// ExtraBytes is added to the size estimate for non-standard scripts.
	ExtraBytes int
}

// SelectUtxos greedily picks utxos in the order given until they cover
// target plus the fee for the inputs picked so far and two outputs.
func SelectUtxos(utxos []*Utxo, target, satsPerKB uint64) (*Selection, error) {
	return Select(SelectParams{Candidates: utxos, Target: target, FeeRate: satsPerKB})
}

// Select runs greedy selection as described by p. The fee is recomputed
// after each input is added.
func Select(p SelectParams) (*Selection, error) {
	outputs := p.Outputs
	if outputs <= 0 {
		outputs = DefaultOutputCount
	}

	sel := &Selection{}
	total := p.FixedSatoshis
	for i, u := range p.Candidates {
		if u == nil {
			return nil, fmt.Errorf("%w: candidate %d", ErrNilParam, i)
		}
		sel.Selected = append(sel.Selected, u)
		total += u.Satoshis

		fee := feeForSize(EstimateTxSize(p.FixedInputs+len(sel.Selected), outputs)+p.ExtraBytes, p.FeeRate)
		if total >= p.Target+fee {
			sel.Fee = fee
			sel.Change = total - p.Target - fee
			return sel, nil
		}
	}

	need := p.Target + feeForSize(EstimateTxSize(p.FixedInputs+len(p.Candidates), outputs)+p.ExtraBytes, p.FeeRate)
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, need)
}
