package swapscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignContractInput produces the signature needed to spend input 0 of a
// funding transaction's 2-of-2 multisig output into a contract transaction.
// Both the sender's initial signature over the counterparty's contract, and
// the counterparty's returned signature, are produced the same way — only
// the private key differs.
func SignContractInput(contractTx *wire.MsgTx, fundingRedeemScript []byte,
	fundingAmount btcutil.Amount, priv *btcec.PrivateKey) ([]byte, error) {

	hashCache := txscript.NewTxSigHashes(contractTx, txscript.NewCannedPrevOutputFetcher(
		fundingRedeemScript, int64(fundingAmount),
	))

	sig, err := txscript.RawTxInWitnessSignature(
		contractTx, hashCache, 0, int64(fundingAmount),
		fundingRedeemScript, txscript.SigHashAll, priv,
	)
	if err != nil {
		return nil, fmt.Errorf("swapscript: sign contract input: %w", err)
	}
	return sig, nil
}

// VerifyContractInputSig checks that sig is a valid signature by pub over
// contractTx's input 0, spending the given funding redeem script/amount.
// Both Maker and Taker call this before accepting a counterparty's
// signature, only after validating the counterparty's half.
func VerifyContractInputSig(contractTx *wire.MsgTx, fundingRedeemScript []byte,
	fundingAmount btcutil.Amount, pub *btcec.PublicKey, sig []byte) error {

	if len(sig) == 0 {
		return fmt.Errorf("swapscript: empty signature")
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return fmt.Errorf("swapscript: bad signature encoding: %w", err)
	}

	hashCache := txscript.NewTxSigHashes(contractTx, txscript.NewCannedPrevOutputFetcher(
		fundingRedeemScript, int64(fundingAmount),
	))
	sigHash, err := txscript.CalcWitnessSigHash(
		fundingRedeemScript, hashCache, txscript.SigHashAll,
		contractTx, 0, int64(fundingAmount),
	)
	if err != nil {
		return fmt.Errorf("swapscript: sighash: %w", err)
	}

	if !parsedSig.Verify(sigHash, pub) {
		return fmt.Errorf("swapscript: invalid contract signature")
	}
	return nil
}

// SignSweep produces a signature spending a contract transaction's output
// via one of its two branches (hashlock or timelock), used both by the
// honest settlement path and by the watcher's recovery sweep.
func SignSweep(sweepTx *wire.MsgTx, contractRedeemScript []byte,
	contractAmount btcutil.Amount, priv *btcec.PrivateKey) ([]byte, error) {

	hashCache := txscript.NewTxSigHashes(sweepTx, txscript.NewCannedPrevOutputFetcher(
		contractRedeemScript, int64(contractAmount),
	))
	sig, err := txscript.RawTxInWitnessSignature(
		sweepTx, hashCache, 0, int64(contractAmount),
		contractRedeemScript, txscript.SigHashAll, priv,
	)
	if err != nil {
		return nil, fmt.Errorf("swapscript: sign sweep: %w", err)
	}
	return sig, nil
}
