package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.input))
		})
	}
}

func TestParseExtraction(t *testing.T) {
	text := "```json\n" + `{
		"extracted_text": "1 egg\n2 cups flour",
		"translations": [
			{"english": "1 egg", "hebrew": "ביצה אחת"},
			{"english": "2 cups flour", "hebrew": "2 כוסות קמח"}
		]
	}` + "\n```"

	ext, err := parseExtraction(text)
	require.NoError(t, err)
	assert.Equal(t, "1 egg\n2 cups flour", ext.ExtractedText)
	require.Len(t, ext.Translations, 2)
	assert.Equal(t, "ביצה אחת", ext.Translations[0].Hebrew)
}

func TestParseExtraction_EmptyPage(t *testing.T) {
	ext, err := parseExtraction(`{"extracted_text": "", "translations": []}`)
	require.NoError(t, err)
	assert.Empty(t, ext.ExtractedText)
	assert.Empty(t, ext.Translations)
}

func TestParseExtraction_Malformed(t *testing.T) {
	_, err := parseExtraction("the model rambled instead of returning JSON")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict(`{"pass": false, "issues": ["english text remains"], "confidence": 0.9}`)
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Equal(t, []string{"english text remains"}, v.Issues)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
}

func TestParseVerdict_Malformed(t *testing.T) {
	_, err := parseVerdict("not json")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
