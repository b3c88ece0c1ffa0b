package chatbot

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxPlaceTokens = 3

var (
	isoDatePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numericDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}(/\d{2,4})?$`)
	ordinalPattern     = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)?$`)
)

var relativeDays = map[string]bool{"today": true, "tomorrow": true, "tonight": true}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

var months = map[string]bool{
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

var stopwords = toSet(
	"a", "an", "the", "my", "me", "i", "you", "your", "it", "is", "are", "be", "will", "am",
	"to", "from", "in", "at", "on", "for", "into", "of", "by", "with", "and", "or", "please",
	"flight", "flights", "ticket", "tickets", "plane", "book", "booking", "reservation", "fly",
	"cancel", "trip", "weather", "forecast", "like", "want", "would", "need", "can", "could",
	"what", "what's", "how", "there", "this", "that", "next", "here", "back", "fine", "good",
	"well", "ok", "okay", "not", "so", "just", "very", "going", "looking", "trying", "now",
	"later", "morning", "afternoon", "evening", "night", "week", "weekend",
)

// Verbs and predicate adjectives that follow "to" or "i am" without naming a
// place or a person.
var nonValueWords = toSet(
	"get", "go", "travel", "be", "see", "visit", "have", "make", "take", "leave",
	"depart", "head", "return", "come", "know", "check", "find", "buy",
	"do", "change", "move", "meet", "stay", "fly", "reserve", "arrange", "order",
	"ask", "say", "talk", "speak", "chat", "hear", "learn", "try", "start",
	"happy", "glad", "great", "sorry", "tired", "excited", "interested",
	"ready", "hungry", "sure", "afraid", "busy", "free", "bored",
	"doing", "feeling", "planning", "hoping", "wondering", "calling", "writing",
)

// Marker phrases that introduce a slot value.
var (
	originMarkers      = [][]string{{"from"}}
	destinationMarkers = [][]string{{"to"}, {"into"}}
	locationMarkers    = [][]string{{"in"}, {"at"}, {"for"}}
	nameMarkers        = [][]string{{"my", "name", "is"}, {"i", "am"}, {"i'm"}, {"im"}, {"this", "is"}, {"call", "me"}, {"name's"}}
	referenceMarkers   = toSet("booking", "reservation", "reference", "confirmation", "ref", "pnr")
)

// SlotExtractor fills intent-specific slots with keyword heuristics. It
// returns only slots it found; an empty map is a valid result.
type SlotExtractor struct{}

func NewSlotExtractor() *SlotExtractor {
	return &SlotExtractor{}
}

func (SlotExtractor) Extract(tokens []string, intent Intent) map[string]string {
	slots := make(map[string]string)
	lower := lowerTokens(tokens)

	switch intent {
	case IntentBookFlight:
		setIf(slots, SlotOrigin, findAfterMarkers(tokens, lower, originMarkers, maxPlaceTokens))
		setIf(slots, SlotDestination, findAfterMarkers(tokens, lower, destinationMarkers, maxPlaceTokens))
		setIf(slots, SlotDate, findDate(lower))
	case IntentCancelFlight:
		setIf(slots, SlotBookingReference, findBookingReference(tokens, lower))
		setIf(slots, SlotOrigin, findAfterMarkers(tokens, lower, originMarkers, maxPlaceTokens))
		setIf(slots, SlotDestination, findAfterMarkers(tokens, lower, destinationMarkers, maxPlaceTokens))
		setIf(slots, SlotDate, findDate(lower))
	case IntentAskAboutWeather:
		setIf(slots, SlotLocation, findAfterMarkers(tokens, lower, locationMarkers, maxPlaceTokens))
		setIf(slots, SlotDate, findDate(lower))
	case IntentGreet:
		setIf(slots, SlotName, findAfterMarkers(tokens, lower, nameMarkers, 2))
	}

	return slots
}

func setIf(slots map[string]string, name, value string) {
	if value != "" {
		slots[name] = value
	}
}

// findAfterMarkers returns the first non-empty run of value tokens following
// any marker occurrence.
func findAfterMarkers(tokens, lower []string, markers [][]string, maxLen int) string {
	for i := range lower {
		for _, m := range markers {
			if !hasPrefixAt(lower, i, m) {
				continue
			}
			if v := valueRun(tokens, lower, i+len(m), maxLen); v != "" {
				return v
			}
		}
	}
	return ""
}

func hasPrefixAt(lower []string, at int, marker []string) bool {
	if at+len(marker) > len(lower) {
		return false
	}
	for j, w := range marker {
		if lower[at+j] != w {
			return false
		}
	}
	return true
}

func valueRun(tokens, lower []string, start, maxLen int) string {
	var parts []string
	for i := start; i < len(tokens) && len(parts) < maxLen; i++ {
		if !isValueToken(lower[i]) {
			break
		}
		parts = append(parts, titleIfLower(tokens[i]))
	}
	return strings.Join(parts, " ")
}

func isValueToken(lower string) bool {
	if _, stop := stopwords[lower]; stop {
		return false
	}
	if _, verb := nonValueWords[lower]; verb {
		return false
	}
	if isDateWord(lower) {
		return false
	}
	for _, r := range lower {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isDateWord(lower string) bool {
	return relativeDays[lower] || weekdays[lower] || months[lower] ||
		isoDatePattern.MatchString(lower) || numericDatePattern.MatchString(lower)
}

func titleIfLower(token string) string {
	if token != strings.ToLower(token) {
		return token
	}
	return cases.Title(language.English).String(token)
}

func findDate(lower []string) string {
	for i, t := range lower {
		switch {
		case relativeDays[t]:
			return t
		case weekdays[t]:
			if i > 0 && lower[i-1] == "next" {
				return "next " + t
			}
			return t
		case isoDatePattern.MatchString(t), numericDatePattern.MatchString(t):
			return t
		case months[t]:
			if i+1 < len(lower) {
				if day, ok := dayOfMonth(lower[i+1]); ok {
					return t + " " + strconv.Itoa(day)
				}
			}
			if i > 0 {
				if day, ok := dayOfMonth(lower[i-1]); ok {
					return t + " " + strconv.Itoa(day)
				}
			}
		}
	}
	return ""
}

func dayOfMonth(token string) (int, bool) {
	m := ordinalPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

// findBookingReference prefers a code right after a reference marker, then
// any token that looks like a record locator.
func findBookingReference(tokens, lower []string) string {
	for i := range lower {
		if _, ok := referenceMarkers[lower[i]]; ok {
			for j := i + 1; j < len(tokens) && j <= i+3; j++ {
				if looksLikeReference(tokens[j]) {
					return strings.ToUpper(tokens[j])
				}
			}
		}
	}
	for _, t := range tokens {
		if looksLikeReference(t) {
			return strings.ToUpper(t)
		}
	}
	return ""
}

func looksLikeReference(token string) bool {
	if len(token) < 5 || len(token) > 8 {
		return false
	}
	var digits, letters int
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		default:
			return false
		}
	}
	if digits == 0 {
		return false
	}
	return letters > 0 || len(token) >= 6
}

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
