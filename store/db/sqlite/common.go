package sqlite

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// placeholder returns a placeholder for SQLite (uses ?)
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// serializeVector encodes a vector as little-endian float32 bytes.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector decodes little-endian float32 bytes. A blob whose length
// is not a multiple of 4 is malformed and decodes to nil.
func deserializeVector(blob []byte) []float32 {
	if len(blob)%4 != 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func marshalWeights(weights map[string]float64) (string, error) {
	if weights == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(weights)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal weights")
	}
	return string(bytes), nil
}

func unmarshalWeights(text string) (map[string]float64, error) {
	weights := map[string]float64{}
	if text == "" {
		return weights, nil
	}
	if err := json.Unmarshal([]byte(text), &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	return weights, nil
}

func inClause(column string, n int) string {
	return column + " IN (" + placeholders(n) + ")"
}
