// Package wire defines the gRPC surface between nodes: the request and
// response messages for the prepare/accept and read/write exchanges, the
// learner fan-out, and the client-facing node API. Messages are encoded
// in protobuf wire format via google.golang.org/protobuf/encoding/protowire
// with hand-rolled marshalers, and the services are declared with
// explicit grpc.ServiceDesc values.
package wire
