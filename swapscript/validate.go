package swapscript

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ExpectedContract describes what the validating party expects a proposed
// contract transaction to look like, covering the checks a receiver runs:
// script form, amount, that the hashlock pubkey equals its own R.pub
// tweaked by a secret tweak R chose, and that T_i is at least the offered
// min_locktime.
type ExpectedContract struct {
	FundingOutpoint     wire.OutPoint
	FundingAmount       btcutil.Amount
	FundingRedeemScript []byte
	HashX160            [20]byte
	TimelockPubkey      *btcec.PublicKey
	MinLocktime         uint32

	// HashlockPubkey is the pubkey the validator expects on the
	// hashlock branch: the receiver's own tweaked pubkey, computed via
	// DeriveHashlockPubkey before the contract is proposed.
	HashlockPubkey *btcec.PublicKey
}

// ValidateContractTxWithTimelock checks that contractTx's sole input spends
// the expected funding outpoint, that its sole output pays (within a fee
// tolerance) the funding amount into the canonical contract redeem script
// for the given timelock, and that the timelock is at least the offered
// minimum. The validating party
// already knows which hop timelock T_i applies (computed locally per the
// timelock discipline of §4.1), so it rebuilds the exact expected P2WSH
// pkScript and compares rather than attempting to parse an opaque witness
// program off an unconfirmed transaction.
func ValidateContractTxWithTimelock(contractTx *wire.MsgTx, exp ExpectedContract,
	timelock uint32, feeTolerance btcutil.Amount) error {

	if len(contractTx.TxIn) != 1 {
		return fmt.Errorf("swapscript: contract tx must have exactly one input")
	}
	if contractTx.TxIn[0].PreviousOutPoint != exp.FundingOutpoint {
		return fmt.Errorf("swapscript: contract tx spends wrong funding outpoint")
	}
	if len(contractTx.TxOut) != 1 {
		return fmt.Errorf("swapscript: contract tx must have exactly one output")
	}
	if timelock < exp.MinLocktime {
		return fmt.Errorf("swapscript: timelock %d below advertised minimum %d",
			timelock, exp.MinLocktime)
	}

	out := contractTx.TxOut[0]
	fee := exp.FundingAmount - btcutil.Amount(out.Value)
	if fee < 0 || fee > feeTolerance {
		return fmt.Errorf("swapscript: contract tx fee %d outside tolerance %d",
			fee, feeTolerance)
	}

	_, expectedOut, err := ContractOutput(ContractParams{
		HashlockPubkey: exp.HashlockPubkey,
		TimelockPubkey: exp.TimelockPubkey,
		Hash160:        exp.HashX160,
		Timelock:       timelock,
	}, btcutil.Amount(out.Value))
	if err != nil {
		return fmt.Errorf("swapscript: build expected contract output: %w", err)
	}

	if !bytes.Equal(expectedOut.PkScript, out.PkScript) {
		return fmt.Errorf("swapscript: contract output script mismatch")
	}

	return nil
}

// ValidateFundingTx checks that fundingTx pays exactly amount into
// MultiSig(pubA, pubB) and returns the index of that output. It inspects
// the transaction's outputs only; whether fundingTx has been mined is not
// checked here.
func ValidateFundingTx(fundingTx *wire.MsgTx, pubA, pubB *btcec.PublicKey,
	amount btcutil.Amount) (outputIndex uint32, err error) {

	_, expected, err := FundingOutput(pubA, pubB, amount)
	if err != nil {
		return 0, err
	}

	for i, out := range fundingTx.TxOut {
		if out.Value == expected.Value && bytes.Equal(out.PkScript, expected.PkScript) {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("swapscript: funding tx does not pay expected multisig output")
}
