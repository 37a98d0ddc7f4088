package idcodec

import (
	"encoding/binary"
	"fmt"
)

// StringCodec stores string identifiers as their UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) ToBytes(id string) ([]byte, error) {
	return []byte(id), nil
}

func (StringCodec) FromBytes(b []byte) (string, error) {
	return string(b), nil
}

// Int32Codec stores int32 identifiers as 4 big-endian bytes.
type Int32Codec struct{}

func (Int32Codec) ToBytes(id int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, uint32(id)), nil
}

func (Int32Codec) FromBytes(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("int32 identifier needs 4 bytes, got %d", len(b))
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Int64Codec stores int64 identifiers as 8 big-endian bytes.
type Int64Codec struct{}

func (Int64Codec) ToBytes(id int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(id)), nil
}

func (Int64Codec) FromBytes(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("int64 identifier needs 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func registerBuiltins(r *Registry) {
	MustRegister[string](r, "string", StringCodec{})
	MustRegister[int32](r, "int32", Int32Codec{})
	MustRegister[int64](r, "int64", Int64Codec{})
}
