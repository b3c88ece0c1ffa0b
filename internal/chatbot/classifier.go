package chatbot

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ClassificationRule maps keywords to an intent. A keyword containing spaces
// is a phrase and must match consecutive tokens.
type ClassificationRule struct {
	Intent   Intent   `json:"intent" mapstructure:"intent" yaml:"intent"`
	Keywords []string `json:"keywords" mapstructure:"keywords" yaml:"keywords"`
}

const (
	keywordScore = 1
	phraseScore  = 2
)

// DefaultRules is the built-in rule set. Order matters: ties go to the
// earlier rule.
func DefaultRules() []ClassificationRule {
	return []ClassificationRule{
		{
			Intent: IntentBookFlight,
			Keywords: []string{
				"book", "reserve", "fly", "flying", "flight", "flights", "ticket", "tickets",
				"book a flight", "book me a flight", "plane ticket",
			},
		},
		{
			Intent: IntentCancelFlight,
			Keywords: []string{
				"cancel", "canceling", "cancelling", "cancellation", "refund",
				"flight", "flights", "booking", "reservation",
				"cancel my flight", "cancel my booking", "call off",
			},
		},
		{
			Intent: IntentAskAboutWeather,
			Keywords: []string{
				"weather", "forecast", "rain", "raining", "rainy", "sunny", "snow", "snowing",
				"temperature", "umbrella", "humid", "windy", "storm",
				"what's the weather", "how hot", "how cold",
			},
		},
		{
			Intent: IntentGreet,
			Keywords: []string{
				"hi", "hello", "hey", "hiya", "howdy", "greetings",
				"good morning", "good afternoon", "good evening",
			},
		},
	}
}

type compiledRule struct {
	intent  Intent
	singles map[string]struct{}
	phrases [][]string
}

// KeywordClassifier scores every rule against the token sequence and returns
// the best-scoring intent. It is immutable after construction.
type KeywordClassifier struct {
	rules []compiledRule
}

// NewKeywordClassifier validates and compiles rules. An empty rule list is
// allowed and classifies everything as unknown.
func NewKeywordClassifier(rules []ClassificationRule) (*KeywordClassifier, error) {
	var result *multierror.Error
	compiled := make([]compiledRule, 0, len(rules))

	for i, rule := range rules {
		if !rule.Intent.Valid() || rule.Intent == IntentUnknown {
			result = multierror.Append(result, fmt.Errorf("rule %d: intent %q is not classifiable", i, rule.Intent))
			continue
		}
		cr := compiledRule{intent: rule.Intent, singles: make(map[string]struct{})}
		for _, kw := range rule.Keywords {
			words := lowerTokens(NewWordTokenizer().Tokenize(kw))
			switch len(words) {
			case 0:
				result = multierror.Append(result, fmt.Errorf("rule %d (%s): empty keyword", i, rule.Intent))
			case 1:
				cr.singles[words[0]] = struct{}{}
			default:
				cr.phrases = append(cr.phrases, words)
			}
		}
		if len(cr.singles) == 0 && len(cr.phrases) == 0 {
			result = multierror.Append(result, fmt.Errorf("rule %d (%s): no keywords", i, rule.Intent))
			continue
		}
		compiled = append(compiled, cr)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &KeywordClassifier{rules: compiled}, nil
}

// MustDefaultClassifier builds a classifier from DefaultRules.
func MustDefaultClassifier() *KeywordClassifier {
	c, err := NewKeywordClassifier(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

func (k *KeywordClassifier) Classify(tokens []string) Intent {
	best, bestScore := IntentUnknown, 0
	lower := lowerTokens(tokens)
	for _, rule := range k.rules {
		if s := rule.score(lower); s > bestScore {
			best, bestScore = rule.intent, s
		}
	}
	return best
}

// Scores exposes per-intent scores, mostly for debugging output.
func (k *KeywordClassifier) Scores(tokens []string) map[Intent]int {
	lower := lowerTokens(tokens)
	out := make(map[Intent]int, len(k.rules))
	for _, rule := range k.rules {
		out[rule.intent] += rule.score(lower)
	}
	return out
}

func (r compiledRule) score(lower []string) int {
	score := 0
	seen := make(map[string]bool)
	for _, t := range lower {
		if _, ok := r.singles[t]; ok && !seen[t] {
			seen[t] = true
			score += keywordScore
		}
	}
	for _, phrase := range r.phrases {
		if containsPhrase(lower, phrase) {
			score += phraseScore
		}
	}
	return score
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if strings.Join(tokens[i:i+len(phrase)], " ") == strings.Join(phrase, " ") {
			return true
		}
	}
	return false
}
