package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Intent
	}{
		{name: "book flight", message: "book a flight to Paris tomorrow", want: IntentBookFlight},
		{name: "book flight uppercase", message: "BOOK ME A FLIGHT", want: IntentBookFlight},
		{name: "cancel flight", message: "Please cancel my booking AB12CD", want: IntentCancelFlight},
		{name: "cancel beats book on phrase", message: "cancel my flight to Rome", want: IntentCancelFlight},
		{name: "weather", message: "What's the weather in London?", want: IntentAskAboutWeather},
		{name: "weather typographic apostrophe", message: "what’s the weather like", want: IntentAskAboutWeather},
		{name: "greet", message: "Hello there", want: IntentGreet},
		{name: "greet phrase", message: "good morning!", want: IntentGreet},
		{name: "tie goes to earlier rule", message: "flight", want: IntentBookFlight},
		{name: "no match", message: "tell me a joke", want: IntentUnknown},
		{name: "empty", message: "", want: IntentUnknown},
	}

	c := MustDefaultClassifier()
	tok := NewWordTokenizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tok.Tokenize(tt.message)))
		})
	}
}

func TestKeywordClassifier_FallbackForEmptyRules(t *testing.T) {
	c, err := NewKeywordClassifier(nil)
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, c.Classify([]string{"book", "a", "flight"}))
	assert.Equal(t, IntentUnknown, c.Classify(nil))
}

func TestKeywordClassifier_Deterministic(t *testing.T) {
	c := MustDefaultClassifier()
	tokens := []string{"hey", "what's", "the", "forecast", "for", "my", "flight"}
	first := c.Classify(tokens)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(tokens))
	}
}

func TestKeywordClassifier_Scores(t *testing.T) {
	c := MustDefaultClassifier()
	scores := c.Scores([]string{"book", "a", "flight"})
	// book + flight + "book a flight"
	assert.Equal(t, 4, scores[IntentBookFlight])
	assert.Equal(t, 1, scores[IntentCancelFlight])
	assert.Zero(t, scores[IntentGreet])
}

func TestNewKeywordClassifier_Validation(t *testing.T) {
	_, err := NewKeywordClassifier([]ClassificationRule{
		{Intent: IntentUnknown, Keywords: []string{"x"}},
		{Intent: Intent("orderPizza"), Keywords: []string{"pizza"}},
		{Intent: IntentGreet, Keywords: []string{"  ", "?!"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 0")
	assert.Contains(t, err.Error(), "rule 1")
	assert.Contains(t, err.Error(), "empty keyword")

	c, err := NewKeywordClassifier([]ClassificationRule{
		{Intent: IntentGreet, Keywords: []string{"ahoy", "top of the morning"}},
	})
	require.NoError(t, err)
	assert.Equal(t, IntentGreet, c.Classify([]string{"Ahoy"}))
	assert.Equal(t, IntentUnknown, c.Classify([]string{"hello"}))
}
