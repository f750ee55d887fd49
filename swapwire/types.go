package swapwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"
)

// FeeModel is the fee schedule a Maker advertises in its Offer, carried
// verbatim on the wire so a Taker can compute hop cost without a round
// trip.
type FeeModel struct {
	AbsoluteFeeSats        uint64
	AmountRelativeFeePPM   uint64
	TimeRelativeFeeSatsPB  uint64
	MinSwapAmount          uint64
	MaxSwapAmount          uint64
	MinLocktime            uint32
}

func (f *FeeModel) encode(w io.Writer) error {
	return writeElements(w,
		f.AbsoluteFeeSats, f.AmountRelativeFeePPM, f.TimeRelativeFeeSatsPB,
		f.MinSwapAmount, f.MaxSwapAmount, f.MinLocktime,
	)
}

func (f *FeeModel) decode(r io.Reader) error {
	return readElements(r,
		&f.AbsoluteFeeSats, &f.AmountRelativeFeePPM, &f.TimeRelativeFeeSatsPB,
		&f.MinSwapAmount, &f.MaxSwapAmount, &f.MinLocktime,
	)
}

// Offer is the body a Maker signs with its bond key and advertises to the
// marketplace; RespOffer carries it plus the signature and the bond that
// backs it.
type Offer struct {
	OnionAddress string
	Fee          FeeModel
	ExpiryHeight uint32
}

func (o *Offer) Encode(w io.Writer) error {
	if err := writeElement(w, o.OnionAddress); err != nil {
		return err
	}
	if err := o.Fee.encode(w); err != nil {
		return err
	}
	return writeElement(w, o.ExpiryHeight)
}

func (o *Offer) Decode(r io.Reader) error {
	if err := readElement(r, &o.OnionAddress); err != nil {
		return err
	}
	if err := o.Fee.decode(r); err != nil {
		return err
	}
	return readElement(r, &o.ExpiryHeight)
}

// Bond describes the fidelity-bond UTXO backing an Offer.
type Bond struct {
	Outpoint        wire.OutPoint
	LockedAmount    uint64
	LocktimeHeight  uint32
	BondPubkey      *btcec.PublicKey
}

func (b *Bond) Encode(w io.Writer) error {
	return writeElements(w, b.Outpoint, b.LockedAmount, b.LocktimeHeight, b.BondPubkey)
}

func (b *Bond) Decode(r io.Reader) error {
	return readElements(r, &b.Outpoint, &b.LockedAmount, &b.LocktimeHeight, &b.BondPubkey)
}

// ContractTxTemplate is a proposed contract transaction together with the
// parameters a counterparty needs to independently rebuild and validate its
// output script before countersigning.
type ContractTxTemplate struct {
	ContractTx      *wire.MsgTx
	FundingOutpoint wire.OutPoint
	FundingAmount   uint64
	HashlockPubkey  *btcec.PublicKey
	TimelockPubkey  *btcec.PublicKey
	HashX160        [20]byte
	Timelock        uint32
}

func (c *ContractTxTemplate) encode(w io.Writer) error {
	return writeElements(w,
		c.ContractTx, c.FundingOutpoint, c.FundingAmount,
		c.HashlockPubkey, c.TimelockPubkey, c.HashX160, c.Timelock,
	)
}

func (c *ContractTxTemplate) decode(r io.Reader) error {
	return readElements(r,
		&c.ContractTx, &c.FundingOutpoint, &c.FundingAmount,
		&c.HashlockPubkey, &c.TimelockPubkey, &c.HashX160, &c.Timelock,
	)
}

// FundingInfo carries an already-broadcast funding transaction together
// with the index and redeem script of the multisig output it pays into, so
// a counterparty can locate and verify that output.
type FundingInfo struct {
	FundingTx      *wire.MsgTx
	OutputIndex    uint32
	RedeemScript   []byte
}

func (f *FundingInfo) encode(w io.Writer) error {
	return writeElements(w, f.FundingTx, f.OutputIndex, f.RedeemScript)
}

func (f *FundingInfo) decode(r io.Reader) error {
	return readElements(r, &f.FundingTx, &f.OutputIndex, &f.RedeemScript)
}

// NextHopData is threaded along proof-of-funding messages so the next Maker
// in the route can be engaged without the Taker repeating negotiation state
// it already collected.
type NextHopData struct {
	HopIndex   uint32
	SendAmount uint64
	Timelock   uint32
	HashX160   [20]byte

	// HasCounterpartyPubkey is false on the final hop, where there is no
	// next counterparty to fund a multisig with.
	HasCounterpartyPubkey bool

	// CounterpartyPubkey is the next hop's fresh funding pubkey, handed
	// to the current sender for that hop's 2-of-2 funding output. The
	// sender still runs the ReqReceiverPubkeys exchange and requires the
	// two pubkeys to agree.
	CounterpartyPubkey *btcec.PublicKey
}

func (n *NextHopData) encode(w io.Writer) error {
	if err := writeElements(w, n.HopIndex, n.SendAmount, n.Timelock, n.HashX160, n.HasCounterpartyPubkey); err != nil {
		return err
	}
	if !n.HasCounterpartyPubkey {
		return nil
	}
	return writeElement(w, n.CounterpartyPubkey)
}

func (n *NextHopData) decode(r io.Reader) error {
	if err := readElements(r, &n.HopIndex, &n.SendAmount, &n.Timelock, &n.HashX160, &n.HasCounterpartyPubkey); err != nil {
		return err
	}
	if !n.HasCounterpartyPubkey {
		return nil
	}
	return readElement(r, &n.CounterpartyPubkey)
}

func writeContractTemplates(w io.Writer, templates []ContractTxTemplate) error {
	if err := writeElement(w, uint32(len(templates))); err != nil {
		return err
	}
	for i := range templates {
		if err := templates[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

func readContractTemplates(r io.Reader) ([]ContractTxTemplate, error) {
	var count uint32
	if err := readElement(r, &count); err != nil {
		return nil, err
	}
	out := make([]ContractTxTemplate, count)
	for i := range out {
		if err := out[i].decode(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeFundings(w io.Writer, fundings []FundingInfo) error {
	if err := writeElement(w, uint32(len(fundings))); err != nil {
		return err
	}
	for i := range fundings {
		if err := fundings[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

func readFundings(r io.Reader) ([]FundingInfo, error) {
	var count uint32
	if err := readElement(r, &count); err != nil {
		return nil, err
	}
	out := make([]FundingInfo, count)
	for i := range out {
		if err := out[i].decode(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeSigs(w io.Writer, sigs []*ecdsa.Signature) error {
	if err := writeElement(w, uint32(len(sigs))); err != nil {
		return err
	}
	for _, sig := range sigs {
		if err := writeElement(w, sig); err != nil {
			return err
		}
	}
	return nil
}

func readSigs(r io.Reader) ([]*ecdsa.Signature, error) {
	var count uint32
	if err := readElement(r, &count); err != nil {
		return nil, err
	}
	out := make([]*ecdsa.Signature, count)
	for i := range out {
		if err := readElement(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeConfirmations(w io.Writer, confs []uint32) error {
	if err := writeElement(w, uint32(len(confs))); err != nil {
		return err
	}
	for _, c := range confs {
		if err := writeElement(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readConfirmations(r io.Reader) ([]uint32, error) {
	var count uint32
	if err := readElement(r, &count); err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		if err := readElement(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeRedeemScripts(w io.Writer, scripts [][]byte) error {
	if err := writeElement(w, uint32(len(scripts))); err != nil {
		return err
	}
	for _, s := range scripts {
		if err := writeElement(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readRedeemScripts(r io.Reader) ([][]byte, error) {
	var count uint32
	if err := readElement(r, &count); err != nil {
		return nil, err
	}
	out := make([][]byte, count)
	for i := range out {
		if err := readElement(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writePrivKeys(w io.Writer, keys [][32]byte) error {
	if err := writeElement(w, uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := writeElement(w, k); err != nil {
			return err
		}
	}
	return nil
}

func readPrivKeys(r io.Reader) ([][32]byte, error) {
	var count uint32
	if err := readElement(r, &count); err != nil {
		return nil, err
	}
	out := make([][32]byte, count)
	for i := range out {
		if err := readElement(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
