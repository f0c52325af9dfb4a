package intent

import (
	"strings"
	"unicode/utf8"

	"github.com/dp9910/app4me-sub001/plugin/ai/keyword"
)

const maxKeyConcepts = 5

var tokenizer = keyword.NewTokenizer()

// Fallback derives an intent from the query text alone. Content words are
// the query tokens minus stopwords; a query made only of stopwords keeps
// all of its tokens.
func Fallback(query string) *QueryIntent {
	query = strings.TrimSpace(query)

	words := tokenizer.ContentWords(query)
	if len(words) == 0 {
		words = tokenizer.Tokenize(query)
	}

	concepts := words
	if len(concepts) > maxKeyConcepts {
		concepts = concepts[:maxKeyConcepts]
	}

	return &QueryIntent{
		MainTopic:     longest(words),
		UserNeed:      query,
		IntentType:    IntentDiscover,
		KeyConcepts:   append([]string{}, concepts...),
		SearchFocus:   append([]string{}, words...),
		SemanticQuery: query,
		Source:        SourceFallback,
	}
}

// longest returns the longest word, the first one on ties.
func longest(words []string) string {
	var best string
	bestLen := 0
	for _, w := range words {
		if n := utf8.RuneCountInString(w); n > bestLen {
			best, bestLen = w, n
		}
	}
	return best
}
