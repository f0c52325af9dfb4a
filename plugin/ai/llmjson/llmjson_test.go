package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intentShape struct {
	MainTopic   string   `json:"main_topic"`
	SearchFocus []string `json:"search_focus"`
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want intentShape
	}{
		{
			name: "strict",
			raw:  `{"main_topic": "plants", "search_focus": ["care"]}`,
			want: intentShape{MainTopic: "plants", SearchFocus: []string{"care"}},
		},
		{
			name: "fenced",
			raw:  "Here you go:\n```json\n{\"main_topic\": \"plants\"}\n```\nThanks",
			want: intentShape{MainTopic: "plants"},
		},
		{
			name: "prose around object",
			raw:  `Sure! {"main_topic": "garden", "search_focus": []} Hope that helps.`,
			want: intentShape{MainTopic: "garden", SearchFocus: []string{}},
		},
		{
			name: "trailing comma",
			raw:  `{"main_topic": "garden", "search_focus": ["a", "b",],}`,
			want: intentShape{MainTopic: "garden", SearchFocus: []string{"a", "b"}},
		},
		{
			name: "missing key quote",
			raw:  `{main_topic": "fern", search_focus": ["x"]}`,
			want: intentShape{MainTopic: "fern", SearchFocus: []string{"x"}},
		},
		{
			name: "smart quotes",
			raw:  "{“main_topic”: “cactus”}",
			want: intentShape{MainTopic: "cactus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got intentShape
			require.NoError(t, DecodeObject(tt.raw, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObjectFailures(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", "{broken", "[1, 2]"} {
		var got intentShape
		err := DecodeObject(raw, &got)
		assert.ErrorIs(t, err, ErrNoJSON, raw)
	}
}

type rankShape struct {
	AppID string `json:"app_id"`
	Score Float  `json:"relevance_score"`
}

func TestDecodeArray(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		var got []rankShape
		require.NoError(t, DecodeArray(`[{"app_id": "a", "relevance_score": 8}]`, &got))
		assert.Equal(t, []rankShape{{AppID: "a", Score: 8}}, got)
	})

	t.Run("fenced with quoted number", func(t *testing.T) {
		var got []rankShape
		require.NoError(t, DecodeArray("```\n[{\"app_id\": \"b\", \"relevance_score\": \"7.5\"}]\n```", &got))
		assert.Equal(t, []rankShape{{AppID: "b", Score: 7.5}}, got)
	})

	t.Run("wrapped in object", func(t *testing.T) {
		var got []rankShape
		require.NoError(t, DecodeArray(`{"results": [{"app_id": "c", "relevance_score": 3}]}`, &got))
		assert.Equal(t, []rankShape{{AppID: "c", Score: 3}}, got)
	})

	t.Run("ambiguous wrapper", func(t *testing.T) {
		var got []rankShape
		err := DecodeArray(`{"a": [], "b": []}`, &got)
		assert.ErrorIs(t, err, ErrNoJSON)
	})

	t.Run("garbage", func(t *testing.T) {
		var got []rankShape
		assert.ErrorIs(t, DecodeArray("I cannot rank these.", &got), ErrNoJSON)
	})
}

func TestRepairLeavesStringsAlone(t *testing.T) {
	in := `{"note": "a, b\": c"}`
	assert.Equal(t, in, Repair(in))
}

func TestFloat(t *testing.T) {
	var f Float
	require.NoError(t, f.UnmarshalJSON([]byte(`"9.25"`)))
	assert.Equal(t, Float(9.25), f)
	require.NoError(t, f.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, Float(9.25), f)
	assert.Error(t, f.UnmarshalJSON([]byte(`"high"`)))
}
