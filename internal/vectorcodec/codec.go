// Package vectorcodec encodes and decodes the fixed-dimension float32
// vectors the Index Loader reads from a SQLite artifact. SQLite has no
// native vector column type, so vectors are stored as a length-prefixed,
// little-endian BLOB and decoded back into []float32 on load.
package vectorcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned for a nil, empty, or non-finite vector.
var ErrInvalidVector = errors.New("vectorcodec: invalid vector")

// Encode converts a float32 vector to a length-prefixed little-endian BLOB.
func Encode(vector []float32) ([]byte, error) {
	if len(vector) == 0 {
		return nil, ErrInvalidVector
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, fmt.Errorf("vectorcodec: encode length: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("vectorcodec: encode values: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode converts a BLOB produced by Encode back to a float32 vector.
func Decode(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}

	buf := bytes.NewReader(data)
	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("vectorcodec: decode length: %w", err)
	}
	if length <= 0 {
		return nil, ErrInvalidVector
	}
	if buf.Len() < int(length)*4 {
		return nil, ErrInvalidVector
	}

	vector := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, &vector); err != nil {
		return nil, fmt.Errorf("vectorcodec: decode values: %w", err)
	}
	return vector, nil
}

// Validate rejects a vector that is empty or contains a NaN/Inf component.
func Validate(vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}
	return nil
}
