package keyword

import (
	"math"
	"sort"
	"strings"

	"github.com/dp9910/app4me-sub001/store"
)

// QueryKeyword is a weighted query term.
type QueryKeyword struct {
	Term   string
	Weight float64
}

// Weights are the multipliers and thresholds of keyword scoring.
type Weights struct {
	CategoryBoost   float64 // exact category match multiplier
	PartialKeyword  float64 // substring keyword match multiplier
	PartialCategory float64 // substring category match multiplier
	QualityBoost    float64 // rating/5 * QualityBoost is added to every score
	ScoreFloor      float64 // minimum admitted score
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		CategoryBoost:   1.2,
		PartialKeyword:  0.7,
		PartialCategory: 0.8,
		QualityBoost:    0.1,
		ScoreFloor:      0.05,
	}
}

// Score is the keyword relevance of one app.
type Score struct {
	Value   float64
	Matched []string // sorted, distinct feature keys that matched
}

// Scorer scores apps against weighted query keywords.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the scorer's weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes the keyword relevance of an app. For each query term:
// an exact keyword hit adds tfidf*w, an exact category hit adds
// tfidf*w*CategoryBoost, and every other key that contains or is contained
// by the term adds tfidf*w times the partial multiplier of its map. The
// rating quality boost is added once. Nil features score zero.
func (s *Scorer) Score(query []QueryKeyword, features *store.AppFeatures, rating *float64) Score {
	if features == nil {
		return Score{}
	}

	keywordKeys := sortedKeys(features.KeywordWeights)
	categoryKeys := sortedKeys(features.CategoryWeights)

	var value float64
	matched := map[string]struct{}{}

	for _, q := range query {
		term := strings.ToLower(strings.TrimSpace(q.Term))
		if term == "" || q.Weight <= 0 {
			continue
		}

		if tfidf, ok := features.KeywordWeights[term]; ok && validWeight(tfidf) {
			value += tfidf * q.Weight
			matched[term] = struct{}{}
		}
		if tfidf, ok := features.CategoryWeights[term]; ok && validWeight(tfidf) {
			value += tfidf * q.Weight * s.weights.CategoryBoost
			matched[term] = struct{}{}
		}
		for _, key := range keywordKeys {
			if isPartial(term, key) {
				value += features.KeywordWeights[key] * q.Weight * s.weights.PartialKeyword
				matched[key] = struct{}{}
			}
		}
		for _, key := range categoryKeys {
			if isPartial(term, key) {
				value += features.CategoryWeights[key] * q.Weight * s.weights.PartialCategory
				matched[key] = struct{}{}
			}
		}
	}

	value += qualityBoost(rating, s.weights.QualityBoost)

	list := make([]string, 0, len(matched))
	for key := range matched {
		list = append(list, key)
	}
	sort.Strings(list)

	return Score{Value: value, Matched: list}
}

// Admit reports whether a score passes the floor. The rating boost alone
// never admits an app.
func (s *Scorer) Admit(score Score) bool {
	return len(score.Matched) > 0 && score.Value >= s.weights.ScoreFloor
}

// validWeight rejects negative, NaN and infinite stored weights.
func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0)
}

func qualityBoost(rating *float64, boost float64) float64 {
	if rating == nil || !validWeight(*rating) {
		return 0
	}
	return *rating / 5.0 * boost
}

// isPartial reports a substring relation in either direction, excluding
// the exact match which is scored separately. Keys are stored lowercased.
func isPartial(term, key string) bool {
	if key == "" || key == term {
		return false
	}
	return strings.Contains(key, term) || strings.Contains(term, key)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for key, w := range m {
		if validWeight(w) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
