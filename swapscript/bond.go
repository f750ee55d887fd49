package swapscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignBondSpend produces the signature needed to redeem a matured fidelity
// bond output via its CHECKLOCKTIMEVERIFY branch. spendTx.LockTime must
// already be set to at least lockHeight and the spending input's sequence
// must be non-final, or the resulting witness will fail script
// verification even though the signature itself is valid.
func SignBondSpend(spendTx *wire.MsgTx, bondRedeemScript []byte,
	bondAmount btcutil.Amount, priv *btcec.PrivateKey) ([]byte, error) {

	hashCache := txscript.NewTxSigHashes(spendTx, txscript.NewCannedPrevOutputFetcher(
		bondRedeemScript, int64(bondAmount),
	))
	sig, err := txscript.RawTxInWitnessSignature(
		spendTx, hashCache, 0, int64(bondAmount),
		bondRedeemScript, txscript.SigHashAll, priv,
	)
	if err != nil {
		return nil, fmt.Errorf("swapscript: sign bond spend: %w", err)
	}
	return sig, nil
}

// BondRedeemScript builds the canonical fidelity-bond script: coins sent
// here are unspendable until lockHeight, after which only bondPubkey can
// redeem them.
//
//	<lockHeight> CHECKLOCKTIMEVERIFY DROP <bondPubkey> CHECKSIG
func BondRedeemScript(bondPubkey *btcec.PublicKey, lockHeight uint32) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(lockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(bondPubkey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}

// BondOutput builds the canonical fidelity-bond redeem script and its
// witness-program output paying amount.
func BondOutput(bondPubkey *btcec.PublicKey, lockHeight uint32, amount btcutil.Amount) ([]byte, *wire.TxOut, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("swapscript: bond amount must be positive")
	}

	redeemScript, err := BondRedeemScript(bondPubkey, lockHeight)
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, &wire.TxOut{
		Value:    int64(amount),
		PkScript: pkScript,
	}, nil
}

// SpendBondWitness assembles the two-item witness stack that redeems a
// matured bond output: the CHECKLOCKTIMEVERIFY branch requires nLockTime on
// the spending transaction to be set at or past lockHeight and nSequence to
// be non-final, which this function does not itself enforce.
func SpendBondWitness(redeemScript, sig []byte) wire.TxWitness {
	return wire.TxWitness{sig, redeemScript}
}
