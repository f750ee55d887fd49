package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinswapd/coinswapd/swapdb"
	"github.com/coinswapd/coinswapd/swapscript"
)

// ownBond is this node's own advertised fidelity bond: the UTXO it locked
// up to back its offers. Creating and redeeming it are plain
// node-management operations, not part of the Maker/Taker swap protocol
// itself, so they live alongside the RPC surface rather than in
// maker.go/taker.go.
type ownBond struct {
	PrivKey    []byte
	Outpoint   wire.OutPoint
	Amount     btcutil.Amount
	LockHeight uint32
}

func (b ownBond) encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(b.PrivKey)))
	buf.Write(b.PrivKey)
	buf.Write(b.Outpoint.Hash[:])
	binary.Write(&buf, binary.BigEndian, b.Outpoint.Index)
	binary.Write(&buf, binary.BigEndian, uint64(b.Amount))
	binary.Write(&buf, binary.BigEndian, b.LockHeight)
	return buf.Bytes()
}

func decodeOwnBond(raw []byte) (ownBond, error) {
	var b ownBond
	r := bytes.NewReader(raw)

	var keyLen uint32
	if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return b, err
	}
	b.PrivKey = make([]byte, keyLen)
	if _, err := io.ReadFull(r, b.PrivKey); err != nil {
		return b, err
	}
	if _, err := io.ReadFull(r, b.Outpoint.Hash[:]); err != nil {
		return b, err
	}
	if err := binary.Read(r, binary.BigEndian, &b.Outpoint.Index); err != nil {
		return b, err
	}
	var amt uint64
	if err := binary.Read(r, binary.BigEndian, &amt); err != nil {
		return b, err
	}
	b.Amount = btcutil.Amount(amt)
	return b, binary.Read(r, binary.BigEndian, &b.LockHeight)
}

// ensureOwnBond returns this node's existing fidelity bond, or creates and
// broadcasts a fresh one sized and locked per cfg.BondAmountSats /
// cfg.BondLockBlocks if none has been created yet.
func ensureOwnBond(cfg *config, db *swapdb.DB, wallet Wallet, heightSource interface {
	CurrentHeight() (uint32, error)
}) (*ownBond, error) {

	raw, err := db.FetchOwnBond()
	if err == nil {
		b, err := decodeOwnBond(raw)
		return &b, err
	}
	if err != swapdb.ErrOwnBondNotFound {
		return nil, err
	}

	height, err := heightSource.CurrentHeight()
	if err != nil {
		return nil, fmt.Errorf("bondmgmt: fetching chain height: %w", err)
	}

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	lockHeight := height + cfg.BondLockBlocks
	amount := btcutil.Amount(cfg.BondAmountSats)

	_, txOut, err := swapscript.BondOutput(priv.PubKey(), lockHeight, amount)
	if err != nil {
		return nil, fmt.Errorf("bondmgmt: building bond output: %w", err)
	}

	tx, err := wallet.BuildFundingTx(txOut.PkScript, amount)
	if err != nil {
		return nil, fmt.Errorf("bondmgmt: funding bond: %w", err)
	}
	if err := wallet.Broadcast(tx); err != nil {
		return nil, fmt.Errorf("bondmgmt: broadcasting bond tx: %w", err)
	}

	b := ownBond{
		PrivKey: priv.Serialize(),
		// The wallet collaborator is expected to place the requested
		// output at index 0, matching the same convention
		// negotiateEdgeZero relies on for funding transactions.
		Outpoint:   wire.OutPoint{Hash: tx.TxHash(), Index: 0},
		Amount:     amount,
		LockHeight: lockHeight,
	}
	if err := db.PutOwnBond(b.encode()); err != nil {
		return nil, err
	}
	return &b, nil
}

// redeemOwnBond spends a matured bond back into the regular wallet pool.
// It fails if the bond's locktime has not yet been reached.
func redeemOwnBond(db *swapdb.DB, wallet Wallet, currentHeight uint32) (*wire.MsgTx, error) {
	raw, err := db.FetchOwnBond()
	if err != nil {
		return nil, err
	}
	b, err := decodeOwnBond(raw)
	if err != nil {
		return nil, err
	}
	if currentHeight < b.LockHeight {
		return nil, fmt.Errorf("bondmgmt: bond matures at height %d, currently %d",
			b.LockHeight, currentHeight)
	}

	priv, _ := btcec.PrivKeyFromBytes(b.PrivKey)
	redeemScript, err := swapscript.BondRedeemScript(priv.PubKey(), b.LockHeight)
	if err != nil {
		return nil, err
	}

	dest, err := wallet.NewAddress()
	if err != nil {
		return nil, err
	}

	const bondSpendFee = btcutil.Amount(500)
	spendTx := wire.NewMsgTx(wire.TxVersion)
	spendTx.LockTime = b.LockHeight
	spendTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: b.Outpoint,
		Sequence:         wire.MaxTxInSequenceNum - 1,
	})
	spendTx.AddTxOut(wire.NewTxOut(int64(b.Amount-bondSpendFee), dest))

	sig, err := swapscript.SignBondSpend(spendTx, redeemScript, b.Amount, priv)
	if err != nil {
		return nil, err
	}
	spendTx.TxIn[0].Witness = swapscript.SpendBondWitness(redeemScript, sig)

	if err := wallet.Broadcast(spendTx); err != nil {
		return nil, fmt.Errorf("bondmgmt: broadcasting bond redemption: %w", err)
	}
	if err := db.DeleteOwnBond(); err != nil {
		return nil, err
	}
	return spendTx, nil
}
