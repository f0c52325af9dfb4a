// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

// AI operation timeout constants.
const (
	// IntentTimeout bounds the intent analysis model call.
	IntentTimeout = 15 * time.Second

	// RerankTimeout bounds the re-ranking model call.
	RerankTimeout = 45 * time.Second

	// EmbeddingTimeout is the timeout for embedding generation.
	EmbeddingTimeout = 30 * time.Second

	// SearchTimeout bounds a whole search request served over HTTP.
	SearchTimeout = 90 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// Truncate shortens s to MaxTruncateLength runes for logging.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTruncateLength {
		return s
	}
	return string(runes[:MaxTruncateLength]) + "..."
}
