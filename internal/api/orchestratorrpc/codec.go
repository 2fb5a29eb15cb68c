package orchestratorrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype this package registers: requests and
// responses travel as "application/grpc+json" instead of protobuf's wire
// format. The orchestrator status service carries only plain maps and
// slices of primitives, so there is nothing protobuf buys here that a
// generic codec doesn't already cover — and registering one lets this
// service use the real grpc.Server/grpc.ClientConn machinery (framing,
// HTTP/2 multiplexing, deadlines) without depending on a protoc run that
// was not available to generate the usual *.pb.go stubs.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
