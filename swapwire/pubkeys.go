package swapwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ReqReceiverPubkeys asks the party that will receive a hop's funding for
// the two pubkeys its sender needs before it can build that hop's funding
// and contract transactions: a fresh raw pubkey for the 2-of-2 funding
// output, and a hashlock pubkey already tweaked by a secret only the
// receiver holds. Disclosing the tweaked public point is safe; the tweak
// itself is never sent over the wire until settlement.
type ReqReceiverPubkeys struct{}

var _ Message = (*ReqReceiverPubkeys)(nil)

func (m *ReqReceiverPubkeys) Decode(r io.Reader) error { return nil }
func (m *ReqReceiverPubkeys) Encode(w io.Writer) error { return nil }
func (m *ReqReceiverPubkeys) MsgType() MessageType     { return MsgReqReceiverPubkeys }
func (m *ReqReceiverPubkeys) MaxPayloadLength() uint32 { return 0 }

// RespReceiverPubkeys answers ReqReceiverPubkeys.
type RespReceiverPubkeys struct {
	FundingPubkey  *btcec.PublicKey
	HashlockPubkey *btcec.PublicKey
}

var _ Message = (*RespReceiverPubkeys)(nil)

func (m *RespReceiverPubkeys) Decode(r io.Reader) error {
	return readElements(r, &m.FundingPubkey, &m.HashlockPubkey)
}

func (m *RespReceiverPubkeys) Encode(w io.Writer) error {
	return writeElements(w, m.FundingPubkey, m.HashlockPubkey)
}

func (m *RespReceiverPubkeys) MsgType() MessageType     { return MsgRespReceiverPubkeys }
func (m *RespReceiverPubkeys) MaxPayloadLength() uint32 { return 128 }
