package swapscript

import "github.com/btcsuite/btcd/blockchain"

// Size and weight constants for the transaction shapes this package builds:
// 2-of-2 funding outputs, contract outputs, and their settlement/sweep
// spends. Adapted from the weight-accounting approach lnd's channel funding
// code uses for its own P2WSH outputs; the funding/multisig shapes here are
// identical, the HTLC-commitment-specific weights are not (coinswap
// contracts have no commitment transaction or revocation path).
const (
	// P2WSHSize is the length of a P2WSH pubkey script: OP_0 + push-32 +
	// 32-byte script hash.
	P2WSHSize = 1 + 1 + 32

	// P2WPKHSize is the length of a P2WPKH pubkey script.
	P2WPKHSize = 1 + 1 + 20

	// P2WSHOutputSize is a full P2WSH TxOut: 8-byte value + varint +
	// pkScript.
	P2WSHOutputSize = 8 + 1 + P2WSHSize

	// P2WKHOutputSize is a full P2WPKH TxOut.
	P2WKHOutputSize = 8 + 1 + P2WPKHSize

	// InputSize is a segwit TxIn with an empty scriptSig: 32-byte hash +
	// 4-byte index + 1-byte empty scriptSig length + 4-byte sequence.
	InputSize = 32 + 4 + 1 + 4

	// MultiSigScriptSize is the length of the 2-of-2 funding redeem
	// script: OP_2 + two compressed pubkey pushes + OP_2 +
	// OP_CHECKMULTISIG.
	MultiSigScriptSize = 1 + 1 + 33 + 1 + 33 + 1 + 1

	// MultiSigWitnessSize is the witness stack spending a 2-of-2 P2WSH
	// funding output: element count + nil push + two DER sigs + redeem
	// script push.
	MultiSigWitnessSize = 1 + 1 + 1 + 73 + 1 + 73 + 1 + MultiSigScriptSize

	// ContractScriptSize upper-bounds the contract redeem script: two
	// compressed pubkeys, a 20-byte hash, and the IF/ELSE opcodes/pushes
	// around them.
	ContractScriptSize = 1 + 1 + 33 + 1 + 1 + 2 + 1 + 1 + 1 + 20 + 1 + 1 + 1 + 5 + 1 + 1 + 1 + 33 + 1 + 1

	// HashlockWitnessSize is the witness stack for the preimage branch:
	// element count + sig + preimage + 1-push + redeem script.
	HashlockWitnessSize = 1 + 1 + 73 + 1 + HashSize + 1 + 1 + 1 + ContractScriptSize

	// TimelockWitnessSize is the witness stack for the CSV refund
	// branch: element count + sig + empty push + redeem script.
	TimelockWitnessSize = 1 + 1 + 73 + 1 + 1 + ContractScriptSize

	// BaseSweepTxSize is a one-input-one-output sweep transaction,
	// excluding witness data: version + witness header + in-count +
	// one input + out-count + one P2WPKH output + locktime.
	BaseSweepTxSize = 4 + 2 + 1 + InputSize + 1 + P2WKHOutputSize + 4
)

// FundingWeight returns the weight of a funding transaction's own P2WSH
// output (callers add their own input set's weight on top).
func FundingWeight() int64 {
	return blockchain.WitnessScaleFactor * P2WSHOutputSize
}

// ContractSweepWeight estimates the weight of a transaction spending a
// single contract output via the given witness size (HashlockWitnessSize
// or TimelockWitnessSize), paying to one P2WPKH output.
func ContractSweepWeight(witnessSize int) int64 {
	base := blockchain.WitnessScaleFactor * BaseSweepTxSize
	witness := 2 + witnessSize // segwit marker + flag, then witness data
	return int64(base + witness)
}
