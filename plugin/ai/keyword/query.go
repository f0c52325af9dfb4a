package keyword

import "strings"

// QueryOptions controls positional weight decay of query keywords.
type QueryOptions struct {
	Decay float64 // weight lost per position in search focus
	Floor float64 // minimum weight of a search focus term
}

// DefaultQueryOptions returns the default decay 0.15 and floor 0.3.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{Decay: 0.15, Floor: 0.3}
}

// BuildQueryKeywords turns an intent's main topic and search focus into
// weighted keywords. The main topic always weighs 1.0; search focus term i
// weighs max(Floor, 1 - Decay*i). Terms are lowercased and trimmed, and a
// repeated term keeps its highest weight at its first position.
func BuildQueryKeywords(mainTopic string, searchFocus []string, opts QueryOptions) []QueryKeyword {
	var keywords []QueryKeyword
	index := map[string]int{}

	add := func(term string, weight float64) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if i, ok := index[term]; ok {
			if weight > keywords[i].Weight {
				keywords[i].Weight = weight
			}
			return
		}
		index[term] = len(keywords)
		keywords = append(keywords, QueryKeyword{Term: term, Weight: weight})
	}

	add(mainTopic, 1.0)
	for i, term := range searchFocus {
		weight := 1.0 - opts.Decay*float64(i)
		if weight < opts.Floor {
			weight = opts.Floor
		}
		add(term, weight)
	}
	return keywords
}
