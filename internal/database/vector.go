package database

import (
	"encoding/binary"
	"math"
)

// EncodeVector serializes an embedding as little-endian float32 bytes,
// the layout shared by the folder and catalog vector tables.
func EncodeVector(embedding []float32) []byte {
	if embedding == nil {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a stored embedding blob. Trailing bytes
// that do not fill a float32 are dropped.
func DecodeVector(blob []byte) []float32 {
	if len(blob) < 4 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
