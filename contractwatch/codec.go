package contractwatch

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

var endian = binary.BigEndian

// writeElements serializes a fixed-width checkpoint record: the scalar and
// fixed-size types a HopWatch needs, nothing variable-length.
func writeElements(w io.Writer, elements ...interface{}) error {
	for _, e := range elements {
		if err := writeElement(w, e); err != nil {
			return err
		}
	}
	return nil
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, e := range elements {
		if err := readElement(r, e); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint32:
		return binary.Write(w, endian, e)
	case uint64:
		return binary.Write(w, endian, e)
	case bool:
		var b uint8
		if e {
			b = 1
		}
		return binary.Write(w, endian, b)
	case [32]byte:
		_, err := w.Write(e[:])
		return err
	case [20]byte:
		_, err := w.Write(e[:])
		return err
	case wire.OutPoint:
		if _, err := w.Write(e.Hash[:]); err != nil {
			return err
		}
		return binary.Write(w, endian, e.Index)
	case *btcec.PublicKey:
		_, err := w.Write(e.SerializeCompressed())
		return err
	default:
		return fmt.Errorf("contractwatch: unsupported element type %T", element)
	}
}

func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint32:
		return binary.Read(r, endian, e)
	case *uint64:
		return binary.Read(r, endian, e)
	case *bool:
		var b uint8
		if err := binary.Read(r, endian, &b); err != nil {
			return err
		}
		*e = b != 0
		return nil
	case *[32]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *[20]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *wire.OutPoint:
		if _, err := io.ReadFull(r, e.Hash[:]); err != nil {
			return err
		}
		return binary.Read(r, endian, &e.Index)
	case **btcec.PublicKey:
		var raw [33]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(raw[:])
		if err != nil {
			return err
		}
		*e = pub
		return nil
	default:
		return fmt.Errorf("contractwatch: unsupported element type %T", element)
	}
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, endian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, endian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	raw, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
