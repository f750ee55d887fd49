package swapwire

import "io"

// RespHashPreimage is sent by the Taker to the closest remaining hop once
// every funding tx is confirmed and every contract signature exchanged. It
// carries the swap preimage and, for every hop but the last, the multisig
// private key the Taker already holds for the next hop outward — so a
// Maker handing over its own key has something to verify against before it
// gives up sole control of its incoming UTXO.
type RespHashPreimage struct {
	Preimage                [32]byte
	HasNextHopMultisigPrivkey bool
	NextHopMultisigPrivkey   [32]byte
}

var _ Message = (*RespHashPreimage)(nil)

func (m *RespHashPreimage) Decode(r io.Reader) error {
	if err := readElement(r, &m.Preimage); err != nil {
		return err
	}
	if err := readElement(r, &m.HasNextHopMultisigPrivkey); err != nil {
		return err
	}
	if !m.HasNextHopMultisigPrivkey {
		return nil
	}
	return readElement(r, &m.NextHopMultisigPrivkey)
}

func (m *RespHashPreimage) Encode(w io.Writer) error {
	if err := writeElement(w, m.Preimage); err != nil {
		return err
	}
	if err := writeElement(w, m.HasNextHopMultisigPrivkey); err != nil {
		return err
	}
	if !m.HasNextHopMultisigPrivkey {
		return nil
	}
	return writeElement(w, m.NextHopMultisigPrivkey)
}

func (m *RespHashPreimage) MsgType() MessageType     { return MsgRespHashPreimage }
func (m *RespHashPreimage) MaxPayloadLength() uint32 { return 128 }

// RespPrivKeyHandover hands over the sender's multisig private keys for a
// hop once the counterparty has proven it holds the matching half (by
// replying to RespHashPreimage, or, sent by the Taker, by being the
// closing message of the reverse walk outward). Sent by both roles, hence
// one message type shared in both directions.
type RespPrivKeyHandover struct {
	Privkeys [][32]byte
}

var _ Message = (*RespPrivKeyHandover)(nil)

func (m *RespPrivKeyHandover) Decode(r io.Reader) error {
	keys, err := readPrivKeys(r)
	if err != nil {
		return err
	}
	m.Privkeys = keys
	return nil
}

func (m *RespPrivKeyHandover) Encode(w io.Writer) error {
	return writePrivKeys(w, m.Privkeys)
}

func (m *RespPrivKeyHandover) MsgType() MessageType     { return MsgRespPrivKeyHandover }
func (m *RespPrivKeyHandover) MaxPayloadLength() uint32 { return 4096 }
