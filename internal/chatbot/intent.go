// Package chatbot implements the rule-based message parsing pipeline:
// tokenize -> classify -> extract, and template response generation.
package chatbot

import (
	"strings"
)

// Intent is the closed set of user goals a single utterance can express.
type Intent string

const (
	IntentGreet           Intent = "greet"
	IntentAskAboutWeather Intent = "askAboutWeather"
	IntentBookFlight      Intent = "bookFlight"
	IntentCancelFlight    Intent = "cancelFlight"
	IntentUnknown         Intent = "unknown"
)

var allIntents = []Intent{
	IntentGreet,
	IntentAskAboutWeather,
	IntentBookFlight,
	IntentCancelFlight,
	IntentUnknown,
}

// AllIntents returns every member of the enumeration, unknown last.
func AllIntents() []Intent {
	out := make([]Intent, len(allIntents))
	copy(out, allIntents)
	return out
}

// Valid reports whether i is one of the enumerated intents.
func (i Intent) Valid() bool {
	for _, known := range allIntents {
		if i == known {
			return true
		}
	}
	return false
}

func (i Intent) String() string {
	return string(i)
}

// ParseIntent maps a wire value to an Intent. Matching ignores case and
// separators, so "book_flight" and "BookFlight" both resolve to bookFlight.
// Anything unrecognised becomes IntentUnknown.
func ParseIntent(s string) Intent {
	key := normalizeIntentKey(s)
	for _, known := range allIntents {
		if normalizeIntentKey(string(known)) == key {
			return known
		}
	}
	return IntentUnknown
}

// UnmarshalText keeps decoding total: unrecognised values decode to unknown.
func (i *Intent) UnmarshalText(text []byte) error {
	*i = ParseIntent(string(text))
	return nil
}

func (i Intent) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return []byte(IntentUnknown), nil
	}
	return []byte(i), nil
}

func normalizeIntentKey(s string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}
