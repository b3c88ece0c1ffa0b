package chatbot

import (
	"fmt"
	"strings"
	"text/template"
)

var slotDescriptions = map[string]string{
	SlotOrigin:           "the city you're flying from",
	SlotDestination:      "the city you're flying to",
	SlotDate:             "your travel date",
	SlotLocation:         "which city you're asking about",
	SlotName:             "your name",
	SlotBookingReference: "your booking reference",
}

type compiledTemplate struct {
	requires []string
	tmpl     *template.Template
}

type intentSection struct {
	expects   []string
	templates []compiledTemplate
}

// TemplateGenerator renders the first template of an intent whose required
// slots are all present. Rendering never fails from the caller's view: any
// problem produces the fallback text.
type TemplateGenerator struct {
	fallback string
	sections map[Intent]intentSection
}

// NewTemplateGenerator compiles a registry. Templates run with
// missingkey=error so a reference to an absent slot falls back instead of
// printing "<no value>". Intents without a section use the built-in ones.
func NewTemplateGenerator(reg *TemplateRegistry) (*TemplateGenerator, error) {
	if reg == nil {
		reg = DefaultTemplateRegistry()
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	reg = reg.WithDefaults()

	g := &TemplateGenerator{
		fallback: strings.TrimSpace(reg.Fallback),
		sections: make(map[Intent]intentSection, len(reg.Intents)),
	}
	if g.fallback == "" {
		g.fallback = DefaultFallback
	}

	for _, section := range reg.Intents {
		compiled := intentSection{expects: append([]string(nil), section.Expects...)}
		for i, tpl := range section.Templates {
			t, err := template.New(fmt.Sprintf("%s/%d", section.Intent, i)).
				Option("missingkey=error").
				Parse(tpl.Text)
			if err != nil {
				return nil, fmt.Errorf("%w: %s template %d: %v", ErrInvalidTemplateRegistry, section.Intent, i, err)
			}
			compiled.templates = append(compiled.templates, compiledTemplate{
				requires: append([]string(nil), tpl.Requires...),
				tmpl:     t,
			})
		}
		g.sections[section.Intent] = compiled
	}

	return g, nil
}

// MustDefaultGenerator builds a generator from DefaultTemplateRegistry.
func MustDefaultGenerator() *TemplateGenerator {
	g, err := NewTemplateGenerator(DefaultTemplateRegistry())
	if err != nil {
		panic(err)
	}
	return g
}

func (g *TemplateGenerator) Fallback() string {
	return g.fallback
}

func (g *TemplateGenerator) GenerateResponse(intent Intent, entities map[string]string) string {
	section, ok := g.sections[intent]
	if !ok || intent == IntentUnknown {
		return g.fallback
	}

	data := make(map[string]string, len(entities)+1)
	for k, v := range entities {
		if strings.TrimSpace(v) != "" {
			data[k] = v
		}
	}
	data["missing"] = describeMissing(section.expects, data)

	for _, ct := range section.templates {
		if !hasAll(data, ct.requires) {
			continue
		}
		var sb strings.Builder
		if err := ct.tmpl.Execute(&sb, data); err != nil {
			return g.fallback
		}
		out := strings.TrimSpace(sb.String())
		if out == "" {
			return g.fallback
		}
		return out
	}

	return g.fallback
}

func hasAll(data map[string]string, slots []string) bool {
	for _, s := range slots {
		if _, ok := data[s]; !ok {
			return false
		}
	}
	return true
}

// describeMissing renders the absent expected slots as an English list,
// e.g. "the city you're flying from and your travel date".
func describeMissing(expects []string, data map[string]string) string {
	var parts []string
	for _, slot := range expects {
		if _, ok := data[slot]; ok {
			continue
		}
		desc, ok := slotDescriptions[slot]
		if !ok {
			desc = "the " + slot
		}
		parts = append(parts, desc)
	}

	switch len(parts) {
	case 0:
		return "a few more details"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
