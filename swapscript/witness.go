package swapscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// WitnessType identifies which of a contract output's two spend paths a
// sweep transaction is using.
type WitnessType uint8

const (
	// WitnessHashlock spends the preimage branch: requires the
	// hashlock private key (receiverPriv + tweak) and the preimage.
	WitnessHashlock WitnessType = iota

	// WitnessTimelock spends the CSV refund branch: requires the
	// sender's timelock private key and a mature relative locktime.
	WitnessTimelock
)

// SignDescriptor carries everything needed to produce the witness for one
// contract output, mirroring the sign-descriptor pattern lnd's wallet layer
// uses to decouple witness construction from key storage.
type SignDescriptor struct {
	RedeemScript []byte
	Amount       btcutil.Amount
	PrivKey      *btcec.PrivateKey
	Preimage     [HashSize]byte // only used for WitnessHashlock
}

// WitnessGenerator builds the final witness stack for spending a contract
// output given the fully-formed sweep transaction.
type WitnessGenerator func(sweepTx *wire.MsgTx) (wire.TxWitness, error)

// GenWitnessFunc returns the WitnessGenerator for the given witness type,
// closing over the sign descriptor so callers don't need to thread key
// material through the transaction-construction call chain.
func (wt WitnessType) GenWitnessFunc(desc SignDescriptor) WitnessGenerator {
	switch wt {
	case WitnessHashlock:
		return func(sweepTx *wire.MsgTx) (wire.TxWitness, error) {
			sig, err := SignSweep(sweepTx, desc.RedeemScript, desc.Amount, desc.PrivKey)
			if err != nil {
				return nil, err
			}
			return SpendContractHashlockWitness(desc.RedeemScript, sig, desc.Preimage), nil
		}
	case WitnessTimelock:
		return func(sweepTx *wire.MsgTx) (wire.TxWitness, error) {
			sig, err := SignSweep(sweepTx, desc.RedeemScript, desc.Amount, desc.PrivKey)
			if err != nil {
				return nil, err
			}
			return SpendContractTimelockWitness(desc.RedeemScript, sig), nil
		}
	default:
		return func(*wire.MsgTx) (wire.TxWitness, error) {
			return nil, fmt.Errorf("swapscript: unknown witness type %d", wt)
		}
	}
}
