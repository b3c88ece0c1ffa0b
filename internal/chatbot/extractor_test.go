package chatbot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSlotExtractor_Extract(t *testing.T) {
	tests := []struct {
		name    string
		message string
		intent  Intent
		want    map[string]string
	}{
		{
			name:    "destination and relative date",
			message: "book a flight to Paris tomorrow",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Paris", SlotDate: "tomorrow"},
		},
		{
			name:    "origin destination and iso date",
			message: "fly from london to new york on 2024-05-01",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotOrigin: "London", SlotDestination: "New York", SlotDate: "2024-05-01"},
		},
		{
			name:    "skips infinitive to",
			message: "I want to book a flight to Rome next friday",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Rome", SlotDate: "next friday"},
		},
		{
			name:    "skips verb after to",
			message: "I want to get a flight to Rome",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Rome"},
		},
		{
			name:    "skips go before destination",
			message: "I need to go to Paris, book a flight",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Paris"},
		},
		{
			name:    "skips travel before destination",
			message: "I'd love to travel to Berlin on friday",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Berlin", SlotDate: "friday"},
		},
		{
			name:    "verb only is no destination",
			message: "I want to visit",
			intent:  IntentBookFlight,
			want:    map[string]string{},
		},
		{
			name:    "month and day",
			message: "flights into Oslo on May 5th",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Oslo", SlotDate: "may 5"},
		},
		{
			name:    "day before month",
			message: "book a ticket to Madrid for 12 june",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "Madrid", SlotDate: "june 12"},
		},
		{
			name:    "place run is capped",
			message: "fly to b c d e",
			intent:  IntentBookFlight,
			want:    map[string]string{SlotDestination: "B C D"},
		},
		{
			name:    "booking reference",
			message: "Please cancel my booking ab12cd",
			intent:  IntentCancelFlight,
			want:    map[string]string{SlotBookingReference: "AB12CD"},
		},
		{
			name:    "cancel by route",
			message: "cancel my flight from Berlin to Vienna on 03/04/2025",
			intent:  IntentCancelFlight,
			want:    map[string]string{SlotOrigin: "Berlin", SlotDestination: "Vienna", SlotDate: "03/04/2025"},
		},
		{
			name:    "weather location",
			message: "What's the weather in San Francisco?",
			intent:  IntentAskAboutWeather,
			want:    map[string]string{SlotLocation: "San Francisco"},
		},
		{
			name:    "weather skips date after for",
			message: "forecast for tomorrow in berlin",
			intent:  IntentAskAboutWeather,
			want:    map[string]string{SlotLocation: "Berlin", SlotDate: "tomorrow"},
		},
		{
			name:    "greet with name",
			message: "Hi, I'm John Smith",
			intent:  IntentGreet,
			want:    map[string]string{SlotName: "John Smith"},
		},
		{
			name:    "greet with phrase marker",
			message: "hello my name is ana",
			intent:  IntentGreet,
			want:    map[string]string{SlotName: "Ana"},
		},
		{
			name:    "greet without name",
			message: "hey, I am fine",
			intent:  IntentGreet,
			want:    map[string]string{},
		},
		{
			name:    "greet with adjective is no name",
			message: "hello, I am happy to be here",
			intent:  IntentGreet,
			want:    map[string]string{},
		},
		{
			name:    "unknown has no slots",
			message: "fly from Paris to Rome tomorrow",
			intent:  IntentUnknown,
			want:    map[string]string{},
		},
		{
			name:    "empty input",
			message: "",
			intent:  IntentBookFlight,
			want:    map[string]string{},
		},
	}

	tok := NewWordTokenizer()
	ext := NewSlotExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ext.Extract(tok.Tokenize(tt.message), tt.intent)
			assert.NotNil(t, got)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSlotExtractor_Deterministic(t *testing.T) {
	tokens := NewWordTokenizer().Tokenize("fly from Lisbon to Rome on friday")
	ext := NewSlotExtractor()
	first := ext.Extract(tokens, IntentBookFlight)
	for i := 0; i < 5; i++ {
		assert.Empty(t, cmp.Diff(first, ext.Extract(tokens, IntentBookFlight)))
	}
}

func TestLooksLikeReference(t *testing.T) {
	assert.True(t, looksLikeReference("AB12CD"))
	assert.True(t, looksLikeReference("123456"))
	assert.False(t, looksLikeReference("12345"))
	assert.False(t, looksLikeReference("ABCDEF"))
	assert.False(t, looksLikeReference("AB1"))
	assert.False(t, looksLikeReference("AB12CD345"))
	assert.False(t, looksLikeReference("AB-12C"))
}
