package wire

import (
	"fmt"
)

// Codec encodes the package's message types in protobuf wire format.
// It is installed with grpc.ForceServerCodec on the server side and
// grpc.ForceCodec on every client call, so no generated protobuf stubs
// are involved.
type Codec struct{}

// Name identifies the codec in gRPC content subtype negotiation.
func (Codec) Name() string { return "paxoswire" }

// Marshal encodes v, which must be one of this package's message types.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return m.marshal(), nil
}

// Unmarshal decodes data into v, which must be one of this package's
// message types.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data)
}
