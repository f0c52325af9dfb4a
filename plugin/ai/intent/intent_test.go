package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dp9910/app4me-sub001/plugin/ai"
)

// fakeLLM replies with a fixed response or error and records prompts.
type fakeLLM struct {
	response string
	err      error
	block    bool
	calls    [][]ai.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.response, f.err
}

func TestFallback(t *testing.T) {
	got := Fallback("  I need an app to help me water my houseplants on time ")

	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, IntentDiscover, got.IntentType)
	assert.Equal(t, "houseplants", got.MainTopic)
	assert.Equal(t, []string{"water", "houseplants", "time"}, got.SearchFocus)
	assert.Equal(t, []string{"water", "houseplants", "time"}, got.KeyConcepts)
	assert.Equal(t, "I need an app to help me water my houseplants on time", got.SemanticQuery)
	assert.Equal(t, got.SemanticQuery, got.UserNeed)
	assert.True(t, got.IsFallback())
}

func TestFallbackEdgeCases(t *testing.T) {
	t.Run("only stopwords keeps raw tokens", func(t *testing.T) {
		got := Fallback("what is the best")
		assert.Equal(t, []string{"what", "is", "the", "best"}, got.SearchFocus)
		assert.Equal(t, "what", got.MainTopic)
	})

	t.Run("empty query", func(t *testing.T) {
		got := Fallback("   ")
		assert.Empty(t, got.MainTopic)
		assert.Empty(t, got.SearchFocus)
		assert.Empty(t, got.SemanticQuery)
	})

	t.Run("key concepts capped at five", func(t *testing.T) {
		got := Fallback("budget savings expense tracker receipts invoices taxes")
		assert.Len(t, got.KeyConcepts, 5)
		assert.Len(t, got.SearchFocus, 7)
		assert.Equal(t, "receipts", got.MainTopic)
	})
}

func TestParseIntentType(t *testing.T) {
	tests := []struct {
		in   string
		want IntentType
		ok   bool
	}{
		{"learn", IntentLearn, true},
		{" SOLVE ", IntentSolve, true},
		{"manage", IntentManage, true},
		{"entertainment", IntentEntertainment, true},
		{"discover", IntentDiscover, true},
		{"shopping", IntentDiscover, false},
		{"", IntentDiscover, false},
	}
	for _, tt := range tests {
		got, ok := ParseIntentType(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestAnalyzeLLM(t *testing.T) {
	llm := &fakeLLM{response: "Sure! Here it is:\n```json\n" + `{
		"main_topic": "plant care",
		"user_need": "Keep indoor plants healthy",
		"intent_type": "Solve",
		"key_concepts": ["watering", "light"],
		"search_focus": ["plant", "watering", " ", "reminder"],
		"semantic_query": "app that reminds me to water indoor plants"
	}` + "\n```"}
	analyzer := NewAnalyzer(llm, nil)

	got := analyzer.Analyze(context.Background(), "help my plants survive")

	require.NotNil(t, got)
	assert.Equal(t, SourceLLM, got.Source)
	assert.Equal(t, "plant care", got.MainTopic)
	assert.Equal(t, IntentSolve, got.IntentType)
	assert.Equal(t, []string{"plant", "watering", "reminder"}, got.SearchFocus)
	assert.Equal(t, "app that reminds me to water indoor plants", got.SemanticQuery)

	require.Len(t, llm.calls, 1)
	assert.Equal(t, "system", llm.calls[0][0].Role)
	assert.Contains(t, llm.calls[0][0].Content, "a single JSON object")
	assert.Contains(t, llm.calls[0][1].Content, `"help my plants survive"`)
}

func TestAnalyzeCompletesPartialOutput(t *testing.T) {
	llm := &fakeLLM{response: `{"main_topic": "", "intent_type": "shopping", "search_focus": []}`}
	analyzer := NewAnalyzer(llm, nil)

	got := analyzer.Analyze(context.Background(), "meditation timer")

	assert.Equal(t, SourceLLM, got.Source)
	assert.Equal(t, IntentDiscover, got.IntentType)
	assert.Equal(t, "meditation", got.MainTopic)
	assert.Equal(t, []string{"meditation", "timer"}, got.SearchFocus)
	assert.Equal(t, "meditation timer", got.SemanticQuery)
	assert.Equal(t, "meditation timer", got.UserNeed)
}

func TestAnalyzeFallsBack(t *testing.T) {
	tests := []struct {
		name string
		llm  ai.LLMService
	}{
		{"nil service", nil},
		{"call error", &fakeLLM{err: errors.New("quota exceeded")}},
		{"no json", &fakeLLM{response: "I cannot help with that."}},
		{"array instead of object", &fakeLLM{response: `["plants"]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAnalyzer(tt.llm, nil).Analyze(context.Background(), "succulent watering schedule")
			require.NotNil(t, got)
			assert.Equal(t, Fallback("succulent watering schedule"), got)
		})
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	analyzer := NewAnalyzer(&fakeLLM{block: true}, nil)
	analyzer.callTimeout = 10 * time.Millisecond

	got := analyzer.Analyze(context.Background(), "bird identification")
	assert.True(t, got.IsFallback())
	assert.Equal(t, "identification", got.MainTopic)
}
