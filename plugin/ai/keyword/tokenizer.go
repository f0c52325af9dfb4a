// Package keyword implements query tokenization and TF-IDF keyword scoring
// of apps against their extracted features.
package keyword

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopwords are dropped from content words. The list covers English
// function words and filler common in app search queries.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an the and or but if then else of to in on at by for with from into onto about
		as is are was were be been being am do does did doing have has had having
		i me my mine we us our you your he him his she her it its they them their
		this that these those there here what which who whom whose when where why how
		can could would should will shall may might must need want wants wanted looking
		find finding help helps get got some any all more most very just also so not no
		than too out up down over under again once only own same such both each few other
		app apps application applications something thing things good best great like
	`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether a lowercased token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenizer splits text into lowercase tokens. Han characters become single
// tokens; other letters and digits form words.
type Tokenizer struct {
	// minTokenLen is the minimum rune length for a word token
	minTokenLen int
}

// NewTokenizer creates a new Tokenizer instance.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		minTokenLen: 1,
	}
}

// Tokenize returns the distinct tokens of text in first-seen order, after
// NFKC normalization.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.TrimSpace(norm.NFKC.String(text))
	if text == "" {
		return nil
	}

	var tokens []string
	seen := make(map[string]bool)
	add := func(token string) {
		if len([]rune(token)) < t.minTokenLen || seen[token] {
			return
		}
		tokens = append(tokens, token)
		seen[token] = true
	}

	var currentWord strings.Builder
	flush := func() {
		if currentWord.Len() > 0 {
			add(strings.ToLower(currentWord.String()))
			currentWord.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			add(string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
			currentWord.WriteRune(r)
		case r == '\'' || r == '’':
			// Drop apostrophes inside words: "user's" -> "users".
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// ContentWords returns the tokens of text that are not stopwords.
func (t *Tokenizer) ContentWords(text string) []string {
	tokens := t.Tokenize(text)
	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if IsStopword(token) {
			continue
		}
		words = append(words, token)
	}
	return words
}
