package swapwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"
)

// maxVarSlice caps any length-prefixed slice field so a corrupt or hostile
// peer can't make a decoder allocate unbounded memory from a bogus length.
const maxVarSlice = 1 << 16

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		return binary.Write(w, binary.BigEndian, e)
	case uint16:
		return binary.Write(w, binary.BigEndian, e)
	case uint32:
		return binary.Write(w, binary.BigEndian, e)
	case uint64:
		return binary.Write(w, binary.BigEndian, e)
	case int64:
		return binary.Write(w, binary.BigEndian, e)

	case [20]byte:
		_, err := w.Write(e[:])
		return err
	case [32]byte:
		_, err := w.Write(e[:])
		return err

	case *btcec.PublicKey:
		if e == nil {
			return fmt.Errorf("swapwire: nil pubkey")
		}
		_, err := w.Write(e.SerializeCompressed())
		return err

	case *ecdsa.Signature:
		return writeVarBytes(w, e.Serialize())

	case wire.OutPoint:
		if err := writeElement(w, e.Hash); err != nil {
			return err
		}
		return writeElement(w, e.Index)

	case *wire.MsgTx:
		var buf bytes.Buffer
		if err := e.Serialize(&buf); err != nil {
			return err
		}
		return writeVarBytes(w, buf.Bytes())

	case []byte:
		return writeVarBytes(w, e)

	case string:
		return writeVarBytes(w, []byte(e))

	case bool:
		var b [1]byte
		if e {
			b[0] = 1
		}
		_, err := w.Write(b[:])
		return err

	default:
		return fmt.Errorf("swapwire: unknown type %T for writeElement", e)
	}
}

func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := writeElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

func writeVarBytes(w io.Writer, b []byte) error {
	if len(b) > maxVarSlice {
		return fmt.Errorf("swapwire: slice of %d bytes exceeds max %d",
			len(b), maxVarSlice)
	}
	if err := writeElement(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		return binary.Read(r, binary.BigEndian, e)
	case *uint16:
		return binary.Read(r, binary.BigEndian, e)
	case *uint32:
		return binary.Read(r, binary.BigEndian, e)
	case *uint64:
		return binary.Read(r, binary.BigEndian, e)
	case *int64:
		return binary.Read(r, binary.BigEndian, e)

	case *[20]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *[32]byte:
		_, err := io.ReadFull(r, e[:])
		return err

	case **btcec.PublicKey:
		var buf [33]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(buf[:])
		if err != nil {
			return fmt.Errorf("swapwire: invalid pubkey: %w", err)
		}
		*e = pub
		return nil

	case **ecdsa.Signature:
		raw, err := readVarBytes(r)
		if err != nil {
			return err
		}
		sig, err := ecdsa.ParseDERSignature(raw)
		if err != nil {
			return fmt.Errorf("swapwire: invalid signature: %w", err)
		}
		*e = sig
		return nil

	case *wire.OutPoint:
		if err := readElement(r, &e.Hash); err != nil {
			return err
		}
		return readElement(r, &e.Index)

	case **wire.MsgTx:
		raw, err := readVarBytes(r)
		if err != nil {
			return err
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("swapwire: invalid transaction: %w", err)
		}
		*e = tx
		return nil

	case *[]byte:
		raw, err := readVarBytes(r)
		if err != nil {
			return err
		}
		*e = raw
		return nil

	case *string:
		raw, err := readVarBytes(r)
		if err != nil {
			return err
		}
		*e = string(raw)
		return nil

	case *bool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0] != 0
		return nil

	default:
		return fmt.Errorf("swapwire: unknown type %T for readElement", e)
	}
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := readElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

func readVarBytes(r io.Reader) ([]byte, error) {
	var length uint32
	if err := readElement(r, &length); err != nil {
		return nil, err
	}
	if length > maxVarSlice {
		return nil, fmt.Errorf("swapwire: slice of %d bytes exceeds max %d",
			length, maxVarSlice)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
