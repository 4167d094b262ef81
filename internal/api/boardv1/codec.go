package boardv1

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of BrainBoard messages.
const CodecName = "cbor"

// Codec encodes messages as CBOR. Struct fields are keyed by their json tags.
type Codec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

// NewCodec builds the codec with RFC 3339 timestamps.
func NewCodec() (*Codec, error) {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Codec{em: em, dm: dm}, nil
}

func (c *Codec) Name() string { return CodecName }

func (c *Codec) Marshal(v any) ([]byte, error) {
	b, err := c.em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor marshal %T: %w", v, err)
	}
	return b, nil
}

func (c *Codec) Unmarshal(data []byte, v any) error {
	if err := c.dm.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor unmarshal %T: %w", v, err)
	}
	return nil
}

func init() {
	c, err := NewCodec()
	if err != nil {
		panic(err)
	}
	encoding.RegisterCodec(c)
}
