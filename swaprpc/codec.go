package swaprpc

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is selected client-side via grpc.CallContentSubtype and
// advertised by the server's transport; it stands in for the "proto"
// subtype protoc-gen-go-grpc normally wires up, since no .proto file is
// compiled for this service.
const codecName = "gob"

// gobCodec implements encoding.Codec by gob-encoding whatever concrete
// request/response struct is handed to it. Unlike protobuf, gob needs no
// generated marshal code, at the cost of tying the wire format to this
// package's own Go types rather than a language-neutral schema.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("swaprpc: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("swaprpc: gob decode: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
