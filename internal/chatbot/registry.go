package chatbot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/hashicorp/go-multierror"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

var ErrInvalidTemplateRegistry = errors.New("TEMPLATE_REGISTRY_INVALID")

// DefaultFallback is the reply for unknown intents and failed renders.
const DefaultFallback = "Sorry, I didn't understand that. You can ask me about the weather, or ask me to book or cancel a flight."

// TemplateRegistry is the on-disk shape of the response templates.
type TemplateRegistry struct {
	Fallback string            `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Intents  []IntentTemplates `json:"intents" yaml:"intents"`
}

// IntentTemplates lists the candidate replies for one intent. Expects names
// the slots a complete request carries; the missing ones are exposed to
// templates as {{.missing}}.
type IntentTemplates struct {
	Intent    Intent             `json:"intent" yaml:"intent"`
	Expects   []string           `json:"expects,omitempty" yaml:"expects,omitempty"`
	Templates []ResponseTemplate `json:"templates" yaml:"templates"`
}

type ResponseTemplate struct {
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Text     string   `json:"text" yaml:"text"`
}

const templateRegistrySchema = `{
  "type": "object",
  "required": ["intents"],
  "properties": {
    "fallback": {"type": "string"},
    "intents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["intent", "templates"],
        "properties": {
          "intent": {"type": "string", "enum": ["greet", "askAboutWeather", "bookFlight", "cancelFlight"]},
          "expects": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "templates": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["text"],
              "properties": {
                "requires": {"type": "array", "items": {"type": "string", "minLength": 1}},
                "text": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`

// DefaultTemplateRegistry returns the built-in templates.
func DefaultTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		Fallback: DefaultFallback,
		Intents: []IntentTemplates{
			{
				Intent: IntentGreet,
				Templates: []ResponseTemplate{
					{Requires: []string{SlotName}, Text: "Hello {{.name}}! How can I help you today?"},
					{Text: "Hello! How can I help you today? I can check the weather or book and cancel flights."},
				},
			},
			{
				Intent:  IntentAskAboutWeather,
				Expects: []string{SlotLocation},
				Templates: []ResponseTemplate{
					{Requires: []string{SlotLocation, SlotDate}, Text: "Let me check the weather in {{.location}} for {{.date}}."},
					{Requires: []string{SlotLocation}, Text: "Let me check the current weather in {{.location}}."},
					{Text: "I can check the weather for you. Could you tell me {{.missing}}?"},
				},
			},
			{
				Intent:  IntentBookFlight,
				Expects: []string{SlotOrigin, SlotDestination, SlotDate},
				Templates: []ResponseTemplate{
					{
						Requires: []string{SlotOrigin, SlotDestination, SlotDate},
						Text:     "Great, I'll look for flights from {{.origin}} to {{.destination}} on {{.date}}.",
					},
					{Requires: []string{SlotDestination}, Text: "I can help you book a flight to {{.destination}}. Could you tell me {{.missing}}?"},
					{Text: "I can help you book a flight. Could you tell me {{.missing}}?"},
				},
			},
			{
				Intent:  IntentCancelFlight,
				Expects: []string{SlotBookingReference},
				Templates: []ResponseTemplate{
					{Requires: []string{SlotBookingReference}, Text: "Your booking {{.bookingReference}} will be cancelled. You'll receive a confirmation shortly."},
					{Requires: []string{SlotDestination}, Text: "I can cancel your flight to {{.destination}}. Could you tell me {{.missing}}?"},
					{Text: "I can cancel a flight for you. Could you tell me {{.missing}}?"},
				},
			},
		},
	}
}

// LoadTemplateRegistry reads a registry file. The format follows the file
// extension: .yaml/.yml for YAML, anything else is JSON.
func LoadTemplateRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template registry: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseTemplateRegistry(data, format)
}

// ParseTemplateRegistry validates data against the registry schema, then
// decodes it and checks that every template compiles.
func ParseTemplateRegistry(data []byte, format string) (*TemplateRegistry, error) {
	var (
		doc interface{}
		reg TemplateRegistry
	)

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidTemplateRegistry, err)
		}
		if err := yaml.Unmarshal(data, &reg); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidTemplateRegistry, err)
		}
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidTemplateRegistry, err)
		}
		if err := json.Unmarshal(data, &reg); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidTemplateRegistry, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidTemplateRegistry, format)
	}

	if err := validateRegistryDocument(doc); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func validateRegistryDocument(doc interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(templateRegistrySchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: schema validation: %v", ErrInvalidTemplateRegistry, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidTemplateRegistry, strings.Join(errs, "; "))
	}
	return nil
}

// WithDefaults returns a copy of r where every classifiable intent without a
// section takes the built-in one.
func (r *TemplateRegistry) WithDefaults() *TemplateRegistry {
	out := &TemplateRegistry{Fallback: r.Fallback, Intents: append([]IntentTemplates(nil), r.Intents...)}
	present := make(map[Intent]bool, len(r.Intents))
	for _, section := range r.Intents {
		present[section.Intent] = true
	}
	for _, section := range DefaultTemplateRegistry().Intents {
		if !present[section.Intent] {
			out.Intents = append(out.Intents, section)
		}
	}
	return out
}

// Validate checks the decoded registry: classifiable intents, no duplicate
// intent sections, templates that parse, and a last template per section
// that requires no slots.
func (r *TemplateRegistry) Validate() error {
	var result *multierror.Error
	seen := make(map[Intent]bool)

	for i, section := range r.Intents {
		if !section.Intent.Valid() || section.Intent == IntentUnknown {
			result = multierror.Append(result, fmt.Errorf("intents[%d]: intent %q cannot have templates", i, section.Intent))
			continue
		}
		if seen[section.Intent] {
			result = multierror.Append(result, fmt.Errorf("intents[%d]: duplicate section for %s", i, section.Intent))
		}
		seen[section.Intent] = true
		if len(section.Templates) == 0 {
			result = multierror.Append(result, fmt.Errorf("intents[%d] (%s): no templates", i, section.Intent))
		}
		if n := len(section.Templates); n > 0 && len(section.Templates[n-1].Requires) > 0 {
			result = multierror.Append(result, fmt.Errorf("intents[%d] (%s): last template must not require slots", i, section.Intent))
		}
		for j, tpl := range section.Templates {
			if _, err := template.New("check").Parse(tpl.Text); err != nil {
				result = multierror.Append(result, fmt.Errorf("intents[%d] (%s) templates[%d]: %v", i, section.Intent, j, err))
			}
		}
	}

	if result.ErrorOrNil() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplateRegistry, result)
	}
	return nil
}
