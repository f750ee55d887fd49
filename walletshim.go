package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/coinswapd/coinswapd/swapdb"
)

// relayFeePerKb is the fixed fee rate the reference wallet assumes for
// coin selection, standing in for the fee estimator a production wallet
// would query from its node backend (out of scope per the wallet
// collaborator interface's own doc comment).
const relayFeePerKb = btcutil.Amount(1000)

// simpleWallet is a minimal, bbolt-backed reference implementation of
// Wallet. coinswapd.go wires it up so the daemon can run end to end
// without an embedding application supplying its own wallet. Real key
// derivation, chain-scan UTXO discovery, and address-book bookkeeping
// belong to a production wallet backend, not to this node daemon, so
// this wallet only ever knows about outputs it is explicitly told about
// via CreditUtxo rather than discovering them by scanning the chain
// itself.
type simpleWallet struct {
	db        *swapdb.DB
	broadcast func(tx *wire.MsgTx) error

	mu sync.Mutex
}

func newSimpleWallet(db *swapdb.DB, broadcast func(tx *wire.MsgTx) error) *simpleWallet {
	return &simpleWallet{db: db, broadcast: broadcast}
}

var _ Wallet = (*simpleWallet)(nil)

// storedUtxo is the decoded form of a walletUtxoBucket record.
type storedUtxo struct {
	Outpoint wire.OutPoint
	Value    btcutil.Amount
	PkScript []byte
	PrivKey  []byte
}

func outpointKey(op wire.OutPoint) []byte {
	key := make([]byte, 36)
	copy(key[:32], op.Hash[:])
	binary.BigEndian.PutUint32(key[32:], op.Index)
	return key
}

func parseOutpointKey(key []byte) wire.OutPoint {
	var op wire.OutPoint
	copy(op.Hash[:], key[:32])
	op.Index = binary.BigEndian.Uint32(key[32:])
	return op
}

func encodeUtxoValue(value btcutil.Amount, pkScript, privKey []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint64(value))
	binary.Write(&buf, binary.BigEndian, uint32(len(pkScript)))
	buf.Write(pkScript)
	binary.Write(&buf, binary.BigEndian, uint32(len(privKey)))
	buf.Write(privKey)
	return buf.Bytes()
}

func decodeUtxoValue(op wire.OutPoint, raw []byte) (storedUtxo, error) {
	r := bytes.NewReader(raw)

	var value uint64
	if err := binary.Read(r, binary.BigEndian, &value); err != nil {
		return storedUtxo{}, err
	}

	var pkLen uint32
	if err := binary.Read(r, binary.BigEndian, &pkLen); err != nil {
		return storedUtxo{}, err
	}
	pkScript := make([]byte, pkLen)
	if _, err := io.ReadFull(r, pkScript); err != nil {
		return storedUtxo{}, err
	}

	var keyLen uint32
	if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return storedUtxo{}, err
	}
	priv := make([]byte, keyLen)
	if _, err := io.ReadFull(r, priv); err != nil {
		return storedUtxo{}, err
	}

	return storedUtxo{
		Outpoint: op,
		Value:    btcutil.Amount(value),
		PkScript: pkScript,
		PrivKey:  priv,
	}, nil
}

func (w *simpleWallet) loadUtxos() ([]storedUtxo, error) {
	var out []storedUtxo
	err := w.db.ForEachWalletUtxo(func(key, value []byte) error {
		u, err := decodeUtxoValue(parseOutpointKey(key), value)
		if err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	return out, err
}

func p2wpkhScript(pub *btcec.PublicKey) ([]byte, error) {
	hash := btcutil.Hash160(pub.SerializeCompressed())
	return txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash).Script()
}

func (w *simpleWallet) newKeyPair() (*btcec.PrivateKey, *btcec.PublicKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	pub := priv.PubKey()
	if err := w.db.PutWalletKey(pub.SerializeCompressed(), priv.Serialize()); err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// NewMultisigPubkey implements Wallet.
func (w *simpleWallet) NewMultisigPubkey() (*btcec.PublicKey, error) {
	_, pub, err := w.newKeyPair()
	return pub, err
}

// PrivKeyFor implements Wallet.
func (w *simpleWallet) PrivKeyFor(pub *btcec.PublicKey) (*btcec.PrivateKey, error) {
	raw, err := w.db.FetchWalletKey(pub.SerializeCompressed())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("walletshim: no private key on file for %x", pub.SerializeCompressed())
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}

// NewAddress implements Wallet.
func (w *simpleWallet) NewAddress() ([]byte, error) {
	_, pub, err := w.newKeyPair()
	if err != nil {
		return nil, err
	}
	return p2wpkhScript(pub)
}

// Balances implements Wallet.
func (w *simpleWallet) Balances() (btcutil.Amount, error) {
	utxos, err := w.loadUtxos()
	if err != nil {
		return 0, err
	}
	var total btcutil.Amount
	for _, u := range utxos {
		total += u.Value
	}
	return total, nil
}

// ListUtxos implements Wallet.
func (w *simpleWallet) ListUtxos() ([]Utxo, error) {
	utxos, err := w.loadUtxos()
	if err != nil {
		return nil, err
	}
	out := make([]Utxo, len(utxos))
	for i, u := range utxos {
		out[i] = Utxo{Outpoint: u.Outpoint, Value: u.Value, PkScript: u.PkScript}
	}
	return out, nil
}

// CreditUtxo records a spendable output this wallet controls, keyed by its
// outpoint. It is the seam a rescan or an external funding source (a test,
// or an embedding application) uses to hand the reference wallet coins;
// coinswapd itself never discovers UTXOs by scanning the chain.
func (w *simpleWallet) CreditUtxo(op wire.OutPoint, value btcutil.Amount, pkScript []byte, priv *btcec.PrivateKey) error {
	return w.db.PutWalletUtxo(outpointKey(op), encodeUtxoValue(value, pkScript, priv.Serialize()))
}

// BuildFundingTx implements Wallet. It selects inputs via
// btcwallet/wallet/txauthor's coin-selection helper, signs every selected
// P2WPKH input itself, and returns the unbroadcast transaction.
func (w *simpleWallet) BuildFundingTx(pkScript []byte, amount btcutil.Amount) (*wire.MsgTx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	utxos, err := w.loadUtxos()
	if err != nil {
		return nil, err
	}
	byOutpoint := make(map[wire.OutPoint]storedUtxo, len(utxos))
	for _, u := range utxos {
		byOutpoint[u.Outpoint] = u
	}

	fetchInputs := func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn, []btcutil.Amount, [][]byte, error) {
		var total btcutil.Amount
		var ins []*wire.TxIn
		var values []btcutil.Amount
		var scripts [][]byte
		for _, u := range utxos {
			if total >= target {
				break
			}
			ins = append(ins, wire.NewTxIn(&u.Outpoint, nil, nil))
			values = append(values, u.Value)
			scripts = append(scripts, u.PkScript)
			total += u.Value
		}
		if total < target {
			return 0, nil, nil, nil, fmt.Errorf(
				"walletshim: insufficient funds: have %d, need %d", total, target)
		}
		return total, ins, values, scripts, nil
	}

	var changePriv *btcec.PrivateKey
	var changeScript []byte
	fetchChange := func() ([]byte, error) {
		priv, pub, err := w.newKeyPair()
		if err != nil {
			return nil, err
		}
		script, err := p2wpkhScript(pub)
		if err != nil {
			return nil, err
		}
		changePriv, changeScript = priv, script
		return script, nil
	}

	fundingOut := wire.NewTxOut(int64(amount), pkScript)
	if txrules.IsDustOutput(fundingOut, relayFeePerKb) {
		return nil, fmt.Errorf("walletshim: funding amount %d is dust at the configured relay fee", amount)
	}

	authored, err := txauthor.NewUnsignedTransaction(
		[]*wire.TxOut{fundingOut}, relayFeePerKb, fetchInputs, fetchChange,
	)
	if err != nil {
		return nil, fmt.Errorf("walletshim: building funding tx: %w", err)
	}

	tx := authored.Tx

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		prevOuts[txIn.PreviousOutPoint] = wire.NewTxOut(
			int64(authored.PrevInputValues[i]), authored.PrevScripts[i])
	}
	hashCache := txscript.NewTxSigHashes(tx, txscript.NewMultiPrevOutFetcher(prevOuts))

	for i, txIn := range tx.TxIn {
		u, ok := byOutpoint[txIn.PreviousOutPoint]
		if !ok {
			return nil, fmt.Errorf("walletshim: missing key material for input %d", i)
		}
		priv, _ := btcec.PrivKeyFromBytes(u.PrivKey)
		witness, err := txscript.WitnessSignature(
			tx, hashCache, i, int64(u.Value), u.PkScript, txscript.SigHashAll, priv, true)
		if err != nil {
			return nil, fmt.Errorf("walletshim: signing input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = witness

		if err := w.db.DeleteWalletUtxo(outpointKey(txIn.PreviousOutPoint)); err != nil {
			return nil, err
		}
	}

	if authored.ChangeIndex >= 0 {
		changeOut := tx.TxOut[authored.ChangeIndex]
		changeOutpoint := wire.OutPoint{Hash: tx.TxHash(), Index: uint32(authored.ChangeIndex)}
		if err := w.CreditUtxo(changeOutpoint, btcutil.Amount(changeOut.Value), changeScript, changePriv); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

// Broadcast implements Wallet.
func (w *simpleWallet) Broadcast(tx *wire.MsgTx) error {
	return w.broadcast(tx)
}

// FetchUtxo implements market.UtxoSource against this wallet's own credited
// outputs. A neutrino light client carries no txindex, so verifying an
// arbitrary counterparty's bond UTXO against the chain directly isn't
// possible with the backend this daemon ships; this covers the bonds the
// local wallet itself created (CreditUtxo/BuildFundingTx) and fails closed
// -- reporting spent -- for anything it doesn't recognize, so offer
// authentication never trusts an unverifiable claim.
func (w *simpleWallet) FetchUtxo(op wire.OutPoint) (btcutil.Amount, []byte, bool, error) {
	utxos, err := w.loadUtxos()
	if err != nil {
		return 0, nil, false, err
	}
	for _, u := range utxos {
		if u.Outpoint == op {
			return u.Value, u.PkScript, false, nil
		}
	}
	return 0, nil, true, nil
}
