package swapwire

import "io"

// ErrorKind classifies an Error message the way the session state machine
// and the ban-decision logic need to distinguish them, without parsing the
// human-readable Reason string.
type ErrorKind uint8

const (
	ErrKindTransport ErrorKind = iota
	ErrKindProtocol
	ErrKindValidation
	ErrKindNode
	ErrKindResource
	ErrKindFatal
)

// Error is sent by either party to report a session-ending problem before
// closing the connection. It is never itself responded to.
type Error struct {
	Kind   ErrorKind
	Reason string
}

var _ Message = (*Error)(nil)

func (m *Error) Decode(r io.Reader) error {
	var kind uint8
	if err := readElement(r, &kind); err != nil {
		return err
	}
	m.Kind = ErrorKind(kind)
	return readElement(r, &m.Reason)
}

func (m *Error) Encode(w io.Writer) error {
	if err := writeElement(w, uint8(m.Kind)); err != nil {
		return err
	}
	return writeElement(w, m.Reason)
}

func (m *Error) MsgType() MessageType     { return MsgError }
func (m *Error) MaxPayloadLength() uint32 { return 4096 }
