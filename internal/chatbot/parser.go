package chatbot

import (
	"chatbot-parser/internal/common/logger"
	"chatbot-parser/internal/common/metrics"
)

// Tokenizer splits raw text into an ordered token sequence. Implementations
// must be total and deterministic.
type Tokenizer interface {
	Tokenize(message string) []string
}

// IntentClassifier maps tokens to exactly one Intent, IntentUnknown when
// nothing matches.
type IntentClassifier interface {
	Classify(tokens []string) Intent
}

// EntityExtractor fills the slots it can for the given intent. A partial or
// empty map is a valid result.
type EntityExtractor interface {
	Extract(tokens []string, intent Intent) map[string]string
}

// ResponseGenerator always returns a non-empty reply.
type ResponseGenerator interface {
	GenerateResponse(intent Intent, entities map[string]string) string
}

// ChatbotParser is the orchestration contract exposed to transports.
type ChatbotParser interface {
	ParseUserMessage(message string) EntityModel
	GenerateResponse(entity EntityModel) string
}

// Parser composes tokenizer, classifier, extractor and generator. It holds no
// per-conversation state; collaborators are read-only after construction.
type Parser struct {
	tokenizer  Tokenizer
	classifier IntentClassifier
	extractor  EntityExtractor
	generator  ResponseGenerator
	logger     logger.Logger
}

type Option func(*Parser)

func WithTokenizer(t Tokenizer) Option {
	return func(p *Parser) { p.tokenizer = t }
}

func WithExtractor(e EntityExtractor) Option {
	return func(p *Parser) { p.extractor = e }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// NewParser wires a parser around the given classifier and generator. Nil
// collaborators are replaced with the built-in rule-based ones.
func NewParser(classifier IntentClassifier, generator ResponseGenerator, opts ...Option) *Parser {
	p := &Parser{
		tokenizer:  NewWordTokenizer(),
		classifier: classifier,
		extractor:  NewSlotExtractor(),
		generator:  generator,
		logger:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.classifier == nil {
		p.classifier = MustDefaultClassifier()
	}
	if p.generator == nil {
		p.generator = MustDefaultGenerator()
	}
	return p
}

// NewDefaultParser uses the built-in keyword rules and templates.
func NewDefaultParser(opts ...Option) *Parser {
	return NewParser(nil, nil, opts...)
}

func (p *Parser) Tokenizer() Tokenizer                 { return p.tokenizer }
func (p *Parser) Classifier() IntentClassifier         { return p.classifier }
func (p *Parser) Extractor() EntityExtractor           { return p.extractor }
func (p *Parser) ResponseGenerator() ResponseGenerator { return p.generator }

// ParseUserMessage runs tokenize, classify and extract in that order. The
// collaborators' output is returned as is.
func (p *Parser) ParseUserMessage(message string) EntityModel {
	tokens := p.tokenizer.Tokenize(message)
	intent := p.classifier.Classify(tokens)
	if !intent.Valid() {
		intent = IntentUnknown
	}
	entities := p.extractor.Extract(tokens, intent)

	metrics.MessagesParsed.WithLabelValues(intent.String()).Inc()
	p.logger.Debug("message parsed", map[string]interface{}{
		"tokens":   len(tokens),
		"intent":   intent.String(),
		"entities": len(entities),
	})

	return NewEntityModel(intent, entities)
}

func (p *Parser) GenerateResponse(entity EntityModel) string {
	response := p.generator.GenerateResponse(entity.Intent, entity.Entities)
	metrics.ResponsesGenerated.WithLabelValues(entity.Intent.String()).Inc()
	return response
}

// Converse runs one turn against conv: the user message and the reply are
// appended to its history and the reply is stored as the current response.
func Converse(parser ChatbotParser, conv *ConversationModel, message string) EntityModel {
	conv.RecordUserMessage(message)
	entity := parser.ParseUserMessage(message)
	conv.RecordResponse(parser.GenerateResponse(entity))
	return entity
}
