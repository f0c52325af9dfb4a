// Package intent turns a free-text app search query into a structured intent.
package intent

import "strings"

// IntentType is the broad goal behind a query.
type IntentType string

const (
	IntentLearn         IntentType = "learn"
	IntentSolve         IntentType = "solve"
	IntentDiscover      IntentType = "discover"
	IntentManage        IntentType = "manage"
	IntentEntertainment IntentType = "entertainment"
)

// ParseIntentType maps a model label to an IntentType. Unknown labels map to
// IntentDiscover and ok is false.
func ParseIntentType(s string) (IntentType, bool) {
	switch IntentType(strings.ToLower(strings.TrimSpace(s))) {
	case IntentLearn:
		return IntentLearn, true
	case IntentSolve:
		return IntentSolve, true
	case IntentDiscover:
		return IntentDiscover, true
	case IntentManage:
		return IntentManage, true
	case IntentEntertainment:
		return IntentEntertainment, true
	default:
		return IntentDiscover, false
	}
}

// Source records how an intent was produced.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// QueryIntent is the structured interpretation of a search query.
type QueryIntent struct {
	MainTopic     string     `json:"main_topic"`
	UserNeed      string     `json:"user_need"`
	IntentType    IntentType `json:"intent_type"`
	KeyConcepts   []string   `json:"key_concepts"`
	SearchFocus   []string   `json:"search_focus"`
	SemanticQuery string     `json:"semantic_query"`
	Source        Source     `json:"source"`
}

// IsFallback reports whether the intent came from the deterministic fallback.
func (i *QueryIntent) IsFallback() bool {
	return i.Source == SourceFallback
}
