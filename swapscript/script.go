// Package swapscript builds and validates the on-chain script layer of a
// coinswap hop: the 2-of-2 funding output and the two-branch contract
// (preimage-or-timelock) redeem script.
package swapscript

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/ripemd160"
)

// HashSize is the length in bytes of the preimage and of HX, its SHA-256
// hash. Any other preimage length must fail the hashlock branch check.
const HashSize = 32

// ContractParams fully describes one contract transaction's redeem script,
// in its canonical two-branch shape:
//
//	IF
//	    <hashlockPubkey> CHECKSIGVERIFY
//	    SIZE 32 EQUALVERIFY HASH160 <HX160> EQUAL
//	ELSE
//	    <timelock> CHECKSEQUENCEVERIFY DROP
//	    <timelockPubkey> CHECKSIG
//	ENDIF
type ContractParams struct {
	// HashlockPubkey is the receiver's pubkey, tweaked by a secret
	// scalar only the receiver knows (see DeriveHashlockPubkey).
	HashlockPubkey *btcec.PublicKey

	// TimelockPubkey is the sender's refund-branch pubkey.
	TimelockPubkey *btcec.PublicKey

	// Hash160 is RIPEMD160(SHA256(preimage)), i.e. HX160.
	Hash160 [20]byte

	// Timelock is the relative CSV timelock, in blocks, measured from
	// the funding transaction's confirmation.
	Timelock uint32
}

// Hash160FromPreimage computes HX160 = RIPEMD160(SHA256(preimage)).
func Hash160FromPreimage(preimage [HashSize]byte) [20]byte {
	sha := sha256.Sum256(preimage[:])
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

// HashXFromPreimage computes HX = SHA256(preimage), the value advertised in
// the swap parameters.
func HashXFromPreimage(preimage [HashSize]byte) [HashSize]byte {
	return sha256.Sum256(preimage[:])
}

// DeriveHashlockPubkey computes hashlock_pubkey = receiverPub + tweak*G, the
// receiver-side key tweak. The caller (the receiver) retains
// tweak as a secret; disclosing it is only safe once the swap has settled.
func DeriveHashlockPubkey(receiverPub *btcec.PublicKey, tweak [32]byte) *btcec.PublicKey {
	var tweakScalar secp256k1.ModNScalar
	tweakScalar.SetBytes(&tweak)

	var tweakPoint secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)

	var recvPoint secp256k1.JacobianPoint
	receiverPub.AsJacobian(&recvPoint)

	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&recvPoint, &tweakPoint, &sum)
	sum.ToAffine()

	return btcec.NewPublicKey(&sum.X, &sum.Y)
}

// TweakPrivateKey returns the private key corresponding to a
// DeriveHashlockPubkey tweak, i.e. receiverPriv + tweak (mod N). The
// receiver uses this once it wants to spend the hashlock branch itself, or
// to hand off the key post-settlement.
func TweakPrivateKey(receiverPriv *btcec.PrivateKey, tweak [32]byte) *btcec.PrivateKey {
	var tweakScalar secp256k1.ModNScalar
	tweakScalar.SetBytes(&tweak)

	privScalar := receiverPriv.Key
	privScalar.Add(&tweakScalar)

	return btcec.PrivKeyFromBytes(privScalar.Bytes()[:])
}

// ContractRedeemScript builds the canonical redeem script for params.
func ContractRedeemScript(p ContractParams) ([]byte, error) {
	if p.Timelock == 0 {
		return nil, fmt.Errorf("swapscript: timelock must be non-zero")
	}

	b := txscript.NewScriptBuilder()

	b.AddOp(txscript.OP_IF)
	b.AddData(p.HashlockPubkey.SerializeCompressed())
	b.AddOp(txscript.OP_CHECKSIGVERIFY)
	b.AddOp(txscript.OP_SIZE)
	b.AddInt64(HashSize)
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(p.Hash160[:])
	b.AddOp(txscript.OP_EQUAL)
	b.AddOp(txscript.OP_ELSE)
	b.AddInt64(int64(p.Timelock))
	b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	b.AddOp(txscript.OP_DROP)
	b.AddData(p.TimelockPubkey.SerializeCompressed())
	b.AddOp(txscript.OP_CHECKSIG)
	b.AddOp(txscript.OP_ENDIF)

	return b.Script()
}

// ParseContractScript decomposes a redeem script produced by
// ContractRedeemScript back into its ContractParams, round-tripping the
// builder: build, parse, and compare against the original parameters.
// It fails if the script doesn't decompose into exactly the two canonical
// branches.
func ParseContractScript(script []byte) (*ContractParams, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	next := func() ([]byte, byte, error) {
		if !tokenizer.Next() {
			if tokenizer.Err() != nil {
				return nil, 0, tokenizer.Err()
			}
			return nil, 0, fmt.Errorf("swapscript: script ended early")
		}
		return tokenizer.Data(), tokenizer.Opcode(), nil
	}
	expectOp := func(op byte) error {
		_, gotOp, err := next()
		if err != nil {
			return err
		}
		if gotOp != op {
			return fmt.Errorf("swapscript: expected opcode %x, got %x", op, gotOp)
		}
		return nil
	}

	if err := expectOp(txscript.OP_IF); err != nil {
		return nil, err
	}
	hashlockData, _, err := next()
	if err != nil {
		return nil, err
	}
	hashlockPub, err := btcec.ParsePubKey(hashlockData)
	if err != nil {
		return nil, fmt.Errorf("swapscript: bad hashlock pubkey: %w", err)
	}
	if err := expectOp(txscript.OP_CHECKSIGVERIFY); err != nil {
		return nil, err
	}
	if err := expectOp(txscript.OP_SIZE); err != nil {
		return nil, err
	}
	sizeData, sizeOp, err := next()
	if err != nil {
		return nil, err
	}
	if !(sizeOp == txscript.OP_DATA_1 && len(sizeData) == 1 && sizeData[0] == HashSize) {
		return nil, fmt.Errorf("swapscript: expected literal 32 for preimage size check")
	}
	if err := expectOp(txscript.OP_EQUALVERIFY); err != nil {
		return nil, err
	}
	if err := expectOp(txscript.OP_HASH160); err != nil {
		return nil, err
	}
	hash160Data, _, err := next()
	if err != nil {
		return nil, err
	}
	if len(hash160Data) != 20 {
		return nil, fmt.Errorf("swapscript: HX160 must be 20 bytes")
	}
	if err := expectOp(txscript.OP_EQUAL); err != nil {
		return nil, err
	}
	if err := expectOp(txscript.OP_ELSE); err != nil {
		return nil, err
	}
	timelockData, timelockOp, err := next()
	if err != nil {
		return nil, err
	}
	timelock, err := scriptNumToUint32(timelockData, timelockOp)
	if err != nil {
		return nil, err
	}
	if err := expectOp(txscript.OP_CHECKSEQUENCEVERIFY); err != nil {
		return nil, err
	}
	if err := expectOp(txscript.OP_DROP); err != nil {
		return nil, err
	}
	timelockPubData, _, err := next()
	if err != nil {
		return nil, err
	}
	timelockPub, err := btcec.ParsePubKey(timelockPubData)
	if err != nil {
		return nil, fmt.Errorf("swapscript: bad timelock pubkey: %w", err)
	}
	if err := expectOp(txscript.OP_CHECKSIG); err != nil {
		return nil, err
	}
	if err := expectOp(txscript.OP_ENDIF); err != nil {
		return nil, err
	}
	if tokenizer.Next() {
		return nil, fmt.Errorf("swapscript: trailing data after ENDIF")
	}

	p := &ContractParams{
		HashlockPubkey: hashlockPub,
		TimelockPubkey: timelockPub,
		Timelock:       timelock,
	}
	copy(p.Hash160[:], hash160Data)
	return p, nil
}

// scriptNumToUint32 decodes the small-int encoding txscript.AddInt64 uses
// for the timelock push, covering both single-opcode (OP_1..OP_16) and
// minimally-encoded data pushes.
func scriptNumToUint32(data []byte, op byte) (uint32, error) {
	if op >= txscript.OP_1 && op <= txscript.OP_16 {
		return uint32(op-txscript.OP_1) + 1, nil
	}
	if len(data) == 0 || len(data) > 4 {
		return 0, fmt.Errorf("swapscript: invalid timelock encoding")
	}
	var v int64
	for i, b := range data {
		v |= int64(b) << (8 * uint(i))
	}
	if len(data) > 0 && data[len(data)-1]&0x80 != 0 {
		v &= ^(int64(0x80) << (8 * uint(len(data)-1)))
		v = -v
	}
	if v < 0 {
		return 0, fmt.Errorf("swapscript: negative timelock")
	}
	return uint32(v), nil
}

// witnessScriptHash wraps a redeem script in a P2WSH pubkey script.
func witnessScriptHash(redeemScript []byte) ([]byte, error) {
	scriptHash := sha256.Sum256(redeemScript)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(scriptHash[:]).
		Script()
}

// FundingMultiSigScript generates the canonical 2-of-2 multisig redeem
// script for a hop's funding output. Pubkeys are sorted lexicographically
// so that both parties derive the identical script independently (spec
// §4.2: "lexicographically ordered pubkeys for deterministic script hash").
func FundingMultiSigScript(pubA, pubB *btcec.PublicKey) ([]byte, error) {
	aBytes := pubA.SerializeCompressed()
	bBytes := pubB.SerializeCompressed()
	if bytes.Compare(aBytes, bBytes) > 0 {
		aBytes, bBytes = bBytes, aBytes
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(aBytes).
		AddData(bBytes).
		AddOp(txscript.OP_2).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}

// FundingOutput builds the redeem script and matching P2WSH TxOut for a
// hop's funding transaction paying sendAmount into MultiSig(pubA, pubB).
func FundingOutput(pubA, pubB *btcec.PublicKey, sendAmount btcutil.Amount) ([]byte, *wire.TxOut, error) {
	if sendAmount <= 0 {
		return nil, nil, fmt.Errorf("swapscript: funding amount must be positive")
	}

	redeemScript, err := FundingMultiSigScript(pubA, pubB)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err := witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, wire.NewTxOut(int64(sendAmount), pkScript), nil
}

// ContractOutput builds the redeem script and matching P2WSH TxOut that a
// contract transaction pays the funding multisig's value into.
func ContractOutput(p ContractParams, amount btcutil.Amount) ([]byte, *wire.TxOut, error) {
	redeemScript, err := ContractRedeemScript(p)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err := witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}
	return redeemScript, wire.NewTxOut(int64(amount), pkScript), nil
}

// SpendMultiSigWitness generates the witness stack for spending the 2-of-2
// P2WSH funding output, keeping the signature order consistent with the
// pubkey sort order used when the redeem script was built.
func SpendMultiSigWitness(redeemScript []byte, pubA, sigA, pubB, sigB []byte) wire.TxWitness {
	witness := make(wire.TxWitness, 4)
	witness[0] = nil

	if bytes.Compare(pubA, pubB) > 0 {
		witness[1] = sigB
		witness[2] = sigA
	} else {
		witness[1] = sigA
		witness[2] = sigB
	}
	witness[3] = redeemScript

	return witness
}

// SpendContractHashlockWitness generates the witness for the hashlock
// branch: <hashlockSig> <preimage> 1 <redeemScript>.
func SpendContractHashlockWitness(redeemScript, hashlockSig []byte, preimage [HashSize]byte) wire.TxWitness {
	return wire.TxWitness{
		hashlockSig,
		preimage[:],
		[]byte{1},
		redeemScript,
	}
}

// SpendContractTimelockWitness generates the witness for the timelock
// branch: <timelockSig> 0 <redeemScript>.
func SpendContractTimelockWitness(redeemScript, timelockSig []byte) wire.TxWitness {
	return wire.TxWitness{
		timelockSig,
		nil,
		redeemScript,
	}
}
