// Package contractwatch implements the background monitor that races
// adversarial contract broadcasts: for every in-flight hop of a swap
// session it watches the funding outpoint for a spend, and if the spend is
// the counterparty's contract transaction rather than the party's own, it
// immediately broadcasts its own contract transaction for every adjacent
// hop in the same session rather than waiting for their timelocks.
package contractwatch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinswapd/coinswapd/swapwire"
)

// HopWatch is the state needed to monitor one hop's funding outpoint and
// react if its counterparty races a contract broadcast: the funding
// outpoint being watched, this party's own contract transaction for that
// hop, and enough of the counterparty's contract template to recognize
// their broadcast and, if it reveals a preimage, to build a hashlock
// sweep of their output.
type HopWatch struct {
	SessionID       string
	HopIndex        uint32
	FundingOutpoint wire.OutPoint
	FundingPkScript []byte

	OwnContractTx   *wire.MsgTx
	OwnRedeemScript []byte
	OwnTimelock     uint32

	CounterpartyTxTemplate swapwire.ContractTxTemplate

	resolved              bool
	counterpartyBroadcast bool
}

func (h *HopWatch) ownContractTxid() chainhash.Hash {
	return h.OwnContractTx.TxHash()
}

// ResolverKey identifies this watch uniquely within a watcher's persisted
// watch list.
func (h *HopWatch) ResolverKey() []byte {
	key := make([]byte, 0, len(h.SessionID)+4)
	key = append(key, []byte(h.SessionID)...)
	var idx [4]byte
	idx[0] = byte(h.HopIndex)
	idx[1] = byte(h.HopIndex >> 8)
	idx[2] = byte(h.HopIndex >> 16)
	idx[3] = byte(h.HopIndex >> 24)
	return append(key, idx[:]...)
}

// IsResolved reports whether this hop's contract output has been fully
// swept and no further watching is required.
func (h *HopWatch) IsResolved() bool {
	return h.resolved
}

// Encode serializes a HopWatch for persistence, so an in-progress watch
// survives a daemon restart.
func (h *HopWatch) Encode(w io.Writer) error {
	if err := writeString(w, h.SessionID); err != nil {
		return err
	}
	if err := writeElements(w, h.HopIndex, h.FundingOutpoint, h.OwnTimelock,
		h.resolved, h.counterpartyBroadcast); err != nil {
		return err
	}
	if err := writeBytes(w, h.FundingPkScript); err != nil {
		return err
	}
	if err := writeBytes(w, h.OwnRedeemScript); err != nil {
		return err
	}

	var txBuf bytes.Buffer
	if err := h.OwnContractTx.Serialize(&txBuf); err != nil {
		return err
	}
	if err := writeBytes(w, txBuf.Bytes()); err != nil {
		return err
	}

	return h.encodeCounterpartyTemplate(w)
}

// Decode reverses Encode.
func (h *HopWatch) Decode(r io.Reader) error {
	var err error
	if h.SessionID, err = readString(r); err != nil {
		return err
	}
	if err := readElements(r, &h.HopIndex, &h.FundingOutpoint, &h.OwnTimelock,
		&h.resolved, &h.counterpartyBroadcast); err != nil {
		return err
	}
	if h.FundingPkScript, err = readBytes(r); err != nil {
		return err
	}
	if h.OwnRedeemScript, err = readBytes(r); err != nil {
		return err
	}

	rawTx, err := readBytes(r)
	if err != nil {
		return err
	}
	h.OwnContractTx = wire.NewMsgTx(wire.TxVersion)
	if err := h.OwnContractTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return fmt.Errorf("contractwatch: decoding own contract tx: %w", err)
	}

	return h.decodeCounterpartyTemplate(r)
}

// encodeCounterpartyTemplate serializes the subset of ContractTxTemplate's
// exported fields contractwatch needs to recognize and, if necessary,
// sweep the counterparty's side of this hop. swapwire's own codec for this
// type is unexported, so the checkpoint format here is independent of it.
func (h *HopWatch) encodeCounterpartyTemplate(w io.Writer) error {
	t := &h.CounterpartyTxTemplate
	if err := writeElements(w, t.FundingOutpoint, t.FundingAmount,
		t.HashlockPubkey, t.TimelockPubkey, t.HashX160, t.Timelock); err != nil {
		return err
	}

	var txBuf bytes.Buffer
	if t.ContractTx != nil {
		if err := t.ContractTx.Serialize(&txBuf); err != nil {
			return err
		}
	}
	return writeBytes(w, txBuf.Bytes())
}

func (h *HopWatch) decodeCounterpartyTemplate(r io.Reader) error {
	t := &h.CounterpartyTxTemplate
	if err := readElements(r, &t.FundingOutpoint, &t.FundingAmount,
		&t.HashlockPubkey, &t.TimelockPubkey, &t.HashX160, &t.Timelock); err != nil {
		return err
	}

	rawTx, err := readBytes(r)
	if err != nil {
		return err
	}
	if len(rawTx) == 0 {
		return nil
	}
	t.ContractTx = wire.NewMsgTx(wire.TxVersion)
	return t.ContractTx.Deserialize(bytes.NewReader(rawTx))
}
