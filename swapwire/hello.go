package swapwire

import "io"

// ProtocolVersion is the only version this implementation speaks. A Hello
// carrying any other value is rejected at the handshake.
const ProtocolVersion uint32 = 1

// TakerHello is the first message sent by a Taker opening a session.
type TakerHello struct {
	Version uint32
}

var _ Message = (*TakerHello)(nil)

func (m *TakerHello) Decode(r io.Reader) error {
	return readElement(r, &m.Version)
}

func (m *TakerHello) Encode(w io.Writer) error {
	return writeElement(w, m.Version)
}

func (m *TakerHello) MsgType() MessageType { return MsgTakerHello }

func (m *TakerHello) MaxPayloadLength() uint32 { return 4 }

// MakerHello answers a TakerHello with the Maker's own protocol version.
type MakerHello struct {
	Version uint32
}

var _ Message = (*MakerHello)(nil)

func (m *MakerHello) Decode(r io.Reader) error {
	return readElement(r, &m.Version)
}

func (m *MakerHello) Encode(w io.Writer) error {
	return writeElement(w, m.Version)
}

func (m *MakerHello) MsgType() MessageType { return MsgMakerHello }

func (m *MakerHello) MaxPayloadLength() uint32 { return 4 }
