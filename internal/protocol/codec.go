package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v for the given frame encoding. Struct fields use their
// json tags in both encodings.
func Marshal(encoding string, v any) ([]byte, error) {
	switch encoding {
	case "", EncodingJSON:
		return json.Marshal(v)
	case EncodingCBOR:
		return cborEnc.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

// CBORToJSON re-encodes a CBOR client frame as JSON so a single decode and
// validation path handles both encodings.
func CBORToJSON(raw []byte) ([]byte, error) {
	var v any
	if err := cborDec.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cbor: %w", err)
	}
	return json.Marshal(v)
}

func UnmarshalCBOR(raw []byte, v any) error {
	return cborDec.Unmarshal(raw, v)
}
