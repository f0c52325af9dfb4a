package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// placeholder returns a positional placeholder for PostgreSQL ($1, $2, ...).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n positional placeholders starting at $1.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

func marshalWeights(weights map[string]float64) ([]byte, error) {
	if weights == nil {
		return []byte("{}"), nil
	}
	bytes, err := json.Marshal(weights)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal weights")
	}
	return bytes, nil
}

func unmarshalWeights(bytes []byte) (map[string]float64, error) {
	weights := map[string]float64{}
	if len(bytes) == 0 {
		return weights, nil
	}
	if err := json.Unmarshal(bytes, &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	return weights, nil
}
