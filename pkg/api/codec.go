package api

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype the sectorfs protocol travels under.
const CodecName = "sectorfs"

// Codec carries wireMessage values over gRPC. It is registered at init
// time so servers resolve it by content-subtype; clients force it per
// call in the generated-style stubs in service.go.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("api: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("api: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (Codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
