package swapwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// ReqOffer asks a Maker for its current advertised offer. It carries no
// fields; the Maker replies with RespOffer.
type ReqOffer struct{}

var _ Message = (*ReqOffer)(nil)

func (m *ReqOffer) Decode(r io.Reader) error { return nil }
func (m *ReqOffer) Encode(w io.Writer) error { return nil }
func (m *ReqOffer) MsgType() MessageType     { return MsgReqOffer }
func (m *ReqOffer) MaxPayloadLength() uint32 { return 0 }

// RespOffer is a Maker's advertised terms, the fidelity bond backing them,
// and the bond-key signature authenticating the pairing of the two.
type RespOffer struct {
	Offer   Offer
	Bond    Bond
	BondSig *ecdsa.Signature
}

var _ Message = (*RespOffer)(nil)

func (m *RespOffer) Decode(r io.Reader) error {
	if err := m.Offer.Decode(r); err != nil {
		return err
	}
	if err := m.Bond.Decode(r); err != nil {
		return err
	}
	return readElement(r, &m.BondSig)
}

func (m *RespOffer) Encode(w io.Writer) error {
	if err := m.Offer.Encode(w); err != nil {
		return err
	}
	if err := m.Bond.Encode(w); err != nil {
		return err
	}
	return writeElement(w, m.BondSig)
}

func (m *RespOffer) MsgType() MessageType     { return MsgRespOffer }
func (m *RespOffer) MaxPayloadLength() uint32 { return 8192 }
